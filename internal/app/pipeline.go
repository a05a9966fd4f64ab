// Package app assembles the ingestion and query pipeline shared by the API
// server, the queue worker and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"rag-backend/internal/ai"
	"rag-backend/internal/config"
	"rag-backend/internal/crawler"
	"rag-backend/internal/telemetry"
	"rag-backend/internal/vectorstore"
	"rag-backend/services"
)

// Pipeline owns every long-lived client. Build it once at startup and Close
// it on shutdown.
type Pipeline struct {
	Store   *vectorstore.Store
	Clients *ai.Clients
	Index   *services.IndexService
	Query   *services.QueryService
}

func NewPipeline(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*Pipeline, error) {
	store, err := vectorstore.NewStore(cfg.IndexDir, cfg.IndexLockTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open index directory: %w", err)
	}

	clients, err := ai.NewClients(ctx, cfg, metrics)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create model clients: %w", err)
	}

	loader := crawler.NewLoader(crawler.LoaderConfig{
		Timeout:       cfg.FetchTimeout,
		RenderJS:      cfg.RenderJS,
		RenderTimeout: cfg.RenderTimeout,
	})
	splitter := services.NewTextSplitter(cfg.MaxChunkSize, cfg.ChunkOverlap)

	index := services.NewIndexService(loader, splitter, clients.Embedder, store, metrics)
	query := services.NewQueryService(index, clients.Embedder, clients.Generator, services.AnswerPrompt, metrics)

	return &Pipeline{
		Store:   store,
		Clients: clients,
		Index:   index,
		Query:   query,
	}, nil
}

func (p *Pipeline) Close() error {
	return errors.Join(p.Clients.Close(), p.Store.Close())
}
