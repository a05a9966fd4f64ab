package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"rag-backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerReleaseModeSkipsDebug(t *testing.T) {
	var buf bytes.Buffer
	initWithWriter(&config.Config{GinMode: "release"}, &buf)
	t.Cleanup(func() { Logger = nil })

	Debug("hidden")
	Info("ingested", "collection", "col_abc", "count", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "ingested", entry["msg"])
	assert.Equal(t, "col_abc", entry["collection"])
	assert.Equal(t, "rag-backend", entry["service"])
}

func TestHelpersAreNilSafe(t *testing.T) {
	Logger = nil
	Info("no logger")
	Error("no logger")
	Warn("no logger")
	Debug("no logger")
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "", RequestID(context.Background()))
}
