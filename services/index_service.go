package services

import (
	"context"
	"fmt"
	"time"

	"rag-backend/internal/ai"
	"rag-backend/internal/logger"
	"rag-backend/internal/telemetry"
	"rag-backend/internal/vectorstore"
	"rag-backend/models"

	"golang.org/x/sync/singleflight"
)

// PageLoader fetches the textual content of one URL.
type PageLoader interface {
	LoadPage(ctx context.Context, url string) (*models.Page, error)
}

// IngestResult is the outcome of indexing one URL.
type IngestResult struct {
	Collection string
	Count      int
}

// IndexService lazily builds one collection per URL. A collection is
// populated the first time it is found empty; later calls reuse it.
type IndexService struct {
	loader   PageLoader
	splitter *TextSplitter
	embedder ai.Embedder
	store    *vectorstore.Store
	metrics  *telemetry.Metrics

	// Serialises population per collection within this process.
	flights singleflight.Group
}

func NewIndexService(loader PageLoader, splitter *TextSplitter, embedder ai.Embedder, store *vectorstore.Store, metrics *telemetry.Metrics) *IndexService {
	return &IndexService{
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		metrics:  metrics,
	}
}

// IndexHandle is an open collection. Callers must Close it.
type IndexHandle struct {
	*vectorstore.Collection
	store *vectorstore.Store
}

func (h *IndexHandle) Close() error {
	if h == nil || h.Collection == nil {
		return nil
	}
	err := h.store.Release(h.Collection)
	h.Collection = nil
	return err
}

// EnsureIndex opens the collection for url, populating it first if it holds
// no chunks. Concurrent callers for the same URL share one population.
func (s *IndexService) EnsureIndex(ctx context.Context, url string) (*IndexHandle, error) {
	name := CollectionName(url)

	col, err := s.store.Acquire(name)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", name, err)
	}
	handle := &IndexHandle{Collection: col, store: s.store}

	if col.Count() > 0 {
		return handle, nil
	}

	_, err, shared := s.flights.Do(name, func() (interface{}, error) {
		// Another flight may have finished between the count and here
		if col.Count() > 0 {
			return nil, nil
		}
		return nil, s.populate(ctx, url, col)
	})
	if err != nil {
		handle.Close()
		return nil, err
	}
	if shared {
		logger.Debug("Joined in-flight population", "collection", name, "request_id", logger.RequestID(ctx))
	}

	return handle, nil
}

func (s *IndexService) populate(ctx context.Context, url string, col *vectorstore.Collection) (err error) {
	start := time.Now()
	count := 0
	defer func() {
		s.metrics.RecordIngestion(ctx, col.Name(), count, time.Since(start).Seconds(), err == nil)
	}()

	page, err := s.loader.LoadPage(ctx, url)
	if err != nil {
		logger.Warn("Failed to load page", "url", url, "error", err, "request_id", logger.RequestID(ctx))
		return err
	}

	chunks := s.splitter.SplitDocuments([]*models.Page{page})
	if len(chunks) == 0 {
		logger.Info("Page produced no chunks", "url", url, "collection", col.Name(), "request_id", logger.RequestID(ctx))
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		logger.Error("Failed to embed chunks", "url", url, "chunks", len(chunks), "error", err, "request_id", logger.RequestID(ctx))
		return err
	}
	if len(vectors) != len(chunks) {
		return models.NewEmbeddingError("embed documents", fmt.Errorf("expected %d vectors, got %d", len(chunks), len(vectors)))
	}

	if err := col.AddChunks(chunks, vectors); err != nil {
		logger.Error("Failed to store chunks", "collection", col.Name(), "error", err, "request_id", logger.RequestID(ctx))
		return err
	}

	count = len(chunks)
	logger.Info("Collection populated",
		"url", url,
		"collection", col.Name(),
		"chunks", count,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", logger.RequestID(ctx),
	)
	return nil
}

// Ingest ensures the URL is indexed and reports the collection size.
func (s *IndexService) Ingest(ctx context.Context, url string) (*IngestResult, error) {
	handle, err := s.EnsureIndex(ctx, url)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	return &IngestResult{Collection: handle.Name(), Count: handle.Count()}, nil
}
