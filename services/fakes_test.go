package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rag-backend/internal/vectorstore"
	"rag-backend/models"

	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	pages map[string]string
	delay time.Duration
	err   error
	calls atomic.Int32
}

func (f *fakeLoader) LoadPage(ctx context.Context, url string) (*models.Page, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.Page{URL: url, Content: f.pages[url], ContentType: "text/html"}, nil
}

// fakeEmbedder maps text to letter counts for a..z, so texts sharing words
// score close to each other.
type fakeEmbedder struct {
	mu       sync.Mutex
	docCalls int
	err      error
}

func letterVector(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	v[0] += 0.001 // never a zero vector
	return v
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.docCalls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = letterVector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return letterVector(text), nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "generated answer", nil
}

func (f *fakeGenerator) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

var errUnreachable = errors.New("unreachable")

func newTestIndexService(t *testing.T, loader PageLoader, embedder *fakeEmbedder) (*IndexService, *vectorstore.Store) {
	t.Helper()
	store, err := vectorstore.NewStore(t.TempDir(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewIndexService(loader, NewTextSplitter(100, 20), embedder, store, nil), store
}
