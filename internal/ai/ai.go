package ai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"rag-backend/internal/config"
	"rag-backend/internal/telemetry"
)

// Embedder turns text into vectors. Documents and queries may use different
// task hints on providers that support them.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion for a fully rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Clients bundles the model clients selected by configuration.
type Clients struct {
	Embedder  Embedder
	Generator Generator

	closers []io.Closer
}

// NewClients builds the embedding and generation clients for the configured
// providers. Missing API keys are not an error here; every call made through
// the returned clients fails instead.
func NewClients(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*Clients, error) {
	clients := &Clients{}

	var gemini *GeminiClient
	geminiClient := func() (*GeminiClient, error) {
		if gemini != nil {
			return gemini, nil
		}
		c, err := NewGeminiClient(ctx, GeminiConfig{
			APIKey:         cfg.GeminiAPIKey,
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.GoogleEmbeddingsModel,
			Tier:           cfg.GeminiTier,
		}, metrics)
		if err != nil {
			return nil, err
		}
		gemini = c
		clients.closers = append(clients.closers, c)
		return c, nil
	}

	var openai *OpenAIClient
	openaiClient := func() *OpenAIClient {
		if openai == nil {
			openai = NewOpenAIClient(OpenAIConfig{
				APIKey:         cfg.OpenAIAPIKey,
				BaseURL:        cfg.OpenAIBaseURL,
				ChatModel:      cfg.ChatModel,
				EmbeddingModel: cfg.OpenAIEmbeddingsModel,
			}, metrics)
		}
		return openai
	}

	switch cfg.EmbeddingsProvider {
	case config.ProviderGoogle:
		c, err := geminiClient()
		if err != nil {
			return nil, err
		}
		clients.Embedder = c
	case config.ProviderOpenAI:
		clients.Embedder = openaiClient()
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}

	switch cfg.LLMProvider {
	case config.ProviderGoogle:
		c, err := geminiClient()
		if err != nil {
			clients.Close()
			return nil, err
		}
		clients.Generator = c
	case config.ProviderOpenAI:
		clients.Generator = openaiClient()
	default:
		clients.Close()
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLMProvider)
	}

	return clients, nil
}

// Close releases provider connections.
func (c *Clients) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
