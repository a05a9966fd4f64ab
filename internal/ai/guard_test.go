package ai

import (
	"context"
	"errors"
	"testing"

	"rag-backend/internal/config"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardOpensAfterFailures(t *testing.T) {
	g := newGuard("test", nil, nil)
	boom := errors.New("boom")

	var calls int
	fail := func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, boom
	}

	for i := 0; i < 3; i++ {
		_, err := g.execute(context.Background(), "test", nil, fail)
		assert.ErrorIs(t, err, boom)
	}

	_, err := g.execute(context.Background(), "test", nil, fail)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, calls)
}

func TestGuardRespectsCancelledContextWhenLimited(t *testing.T) {
	limiter := newTierLimiter("free")
	// Drain the burst so the next Wait has to block
	for limiter.Allow() {
	}
	g := newGuard("limited", limiter, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.execute(ctx, "test", nil, func(ctx context.Context) (interface{}, error) {
		return "unreachable", nil
	})
	assert.Error(t, err)
}

func TestGetRateLimits(t *testing.T) {
	assert.Equal(t, 10, getRateLimits("free").RPM)
	assert.Equal(t, 1000, getRateLimits("tier1").RPM)
	assert.Equal(t, 2000, getRateLimits("tier2").RPM)
	assert.Equal(t, 10, getRateLimits("unknown").RPM)
}

func TestNewClientsSelectsProviders(t *testing.T) {
	cfg := &config.Config{
		LLMProvider:        config.ProviderOpenAI,
		EmbeddingsProvider: config.ProviderGoogle,
		GeminiTier:         "free",
	}

	clients, err := NewClients(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer clients.Close()

	assert.IsType(t, &GeminiClient{}, clients.Embedder)
	assert.IsType(t, &OpenAIClient{}, clients.Generator)

	cfg.LLMProvider = "anthropic"
	_, err = NewClients(context.Background(), cfg, nil)
	assert.Error(t, err)
}
