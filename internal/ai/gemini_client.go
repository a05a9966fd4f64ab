package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rag-backend/internal/telemetry"
	"rag-backend/models"

	genai "github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
)

// maxEmbedBatch is the largest batch BatchEmbedContents accepts.
const maxEmbedBatch = 100

var errMissingGeminiKey = errors.New("GEMINI_API_KEY is not set")

type GeminiConfig struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Tier           string
}

// GeminiClient serves both embeddings and generation from Google Generative
// AI. Generation is throttled to the configured tier.
type GeminiClient struct {
	cfg        GeminiConfig
	client     *genai.Client
	embedGuard *guard
	genGuard   *guard
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig, metrics *telemetry.Metrics) (*GeminiClient, error) {
	gc := &GeminiClient{
		cfg:        cfg,
		embedGuard: newGuard("gemini-embeddings", nil, metrics),
		genGuard:   newGuard("gemini-generation", newTierLimiter(cfg.Tier), metrics),
	}
	if cfg.APIKey == "" {
		return gc, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, models.NewConfigurationError("gemini client", err)
	}
	gc.client = client
	return gc, nil
}

// EmbedDocuments embeds texts in batches, preserving input order.
func (gc *GeminiClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if gc.client == nil {
		return nil, models.NewEmbeddingError("gemini embed documents", models.NewConfigurationError("gemini", errMissingGeminiKey))
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := start + maxEmbedBatch
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := gc.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, models.NewEmbeddingError("gemini embed documents", err)
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

func (gc *GeminiClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	attrs := []attribute.KeyValue{
		attribute.String("ai.model", gc.cfg.EmbeddingModel),
		attribute.Int("ai.batch_size", len(texts)),
	}
	result, err := gc.embedGuard.execute(ctx, "gemini.batch_embed_contents", attrs, func(ctx context.Context) (interface{}, error) {
		em := gc.client.EmbeddingModel(gc.cfg.EmbeddingModel)
		em.TaskType = genai.TaskTypeRetrievalDocument

		b := em.NewBatch()
		for _, text := range texts {
			b.AddContent(genai.Text(text))
		}
		return em.BatchEmbedContents(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	resp := result.(*genai.BatchEmbedContentsResponse)
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

func (gc *GeminiClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if gc.client == nil {
		return nil, models.NewEmbeddingError("gemini embed query", models.NewConfigurationError("gemini", errMissingGeminiKey))
	}

	attrs := []attribute.KeyValue{attribute.String("ai.model", gc.cfg.EmbeddingModel)}
	result, err := gc.embedGuard.execute(ctx, "gemini.embed_content", attrs, func(ctx context.Context) (interface{}, error) {
		em := gc.client.EmbeddingModel(gc.cfg.EmbeddingModel)
		em.TaskType = genai.TaskTypeRetrievalQuery
		return em.EmbedContent(ctx, genai.Text(text))
	})
	if err != nil {
		return nil, models.NewEmbeddingError("gemini embed query", err)
	}

	resp := result.(*genai.EmbedContentResponse)
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, models.NewEmbeddingError("gemini embed query", errors.New("no embedding returned"))
	}
	return resp.Embedding.Values, nil
}

// Generate runs the prompt at temperature 0 and returns the concatenated
// text parts of the first candidate.
func (gc *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if gc.client == nil {
		return "", models.NewGenerationError("gemini generate", models.NewConfigurationError("gemini", errMissingGeminiKey))
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.model", gc.cfg.ChatModel),
		attribute.Int("ai.prompt_chars", len(prompt)),
	}
	result, err := gc.genGuard.execute(ctx, "gemini.generate_content", attrs, func(ctx context.Context) (interface{}, error) {
		model := gc.client.GenerativeModel(gc.cfg.ChatModel)
		model.SetTemperature(0)
		return model.GenerateContent(ctx, genai.Text(prompt))
	})
	if err != nil {
		return "", models.NewGenerationError("gemini generate", err)
	}

	answer := responseText(result.(*genai.GenerateContentResponse))
	if answer == "" {
		return "", models.NewGenerationError("gemini generate", errors.New("empty response"))
	}
	return answer, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
