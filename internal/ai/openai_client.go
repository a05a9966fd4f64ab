package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rag-backend/internal/telemetry"
	"rag-backend/models"

	"go.opentelemetry.io/otel/attribute"
)

const defaultOpenAITimeout = 120 * time.Second

var errMissingOpenAIKey = errors.New("OPENAI_API_KEY is not set")

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
}

// OpenAIClient talks to OpenAI-compatible /embeddings and /chat/completions
// endpoints.
type OpenAIClient struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	embedGuard *guard
	genGuard   *guard
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	Temperature float64             `json:"temperature"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func NewOpenAIClient(cfg OpenAIConfig, metrics *telemetry.Metrics) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultOpenAITimeout
	}

	return &OpenAIClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		embedGuard: newGuard("openai-embeddings", nil, metrics),
		genGuard:   newGuard("openai-generation", nil, metrics),
	}
}

// EmbedDocuments embeds texts in batches, preserving input order.
func (c *OpenAIClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if c.cfg.APIKey == "" {
		return nil, models.NewEmbeddingError("openai embed documents", models.NewConfigurationError("openai", errMissingOpenAIKey))
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

		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, models.NewEmbeddingError("openai embed documents", err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (c *OpenAIClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if c.cfg.APIKey == "" {
		return nil, models.NewEmbeddingError("openai embed query", models.NewConfigurationError("openai", errMissingOpenAIKey))
	}

	vectors, err := c.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, models.NewEmbeddingError("openai embed query", err)
	}
	return vectors[0], nil
}

func (c *OpenAIClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	attrs := []attribute.KeyValue{
		attribute.String("ai.model", c.cfg.EmbeddingModel),
		attribute.Int("ai.batch_size", len(texts)),
	}
	result, err := c.embedGuard.execute(ctx, "openai.embeddings", attrs, func(ctx context.Context) (interface{}, error) {
		var resp embeddingResponse
		if err := c.post(ctx, "/embeddings", embeddingRequest{Input: texts, Model: c.cfg.EmbeddingModel}, &resp); err != nil {
			return nil, err
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("openai error: %s", resp.Error.Message)
		}
		return &resp, nil
	})
	if err != nil {
		return nil, err
	}

	resp := result.(*embeddingResponse)
	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index >= 0 && data.Index < len(vectors) {
			vectors[data.Index] = data.Embedding
		}
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("missing embedding at index %d", i)
		}
	}
	return vectors, nil
}

// Generate sends the prompt as a single user message at temperature 0.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", models.NewGenerationError("openai generate", models.NewConfigurationError("openai", errMissingOpenAIKey))
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.model", c.cfg.ChatModel),
		attribute.Int("ai.prompt_chars", len(prompt)),
	}
	result, err := c.genGuard.execute(ctx, "openai.chat_completions", attrs, func(ctx context.Context) (interface{}, error) {
		req := chatCompletionRequest{
			Model:       c.cfg.ChatModel,
			Messages:    []chatCompletionMsg{{Role: "user", Content: prompt}},
			Temperature: 0,
		}
		var resp chatCompletionResponse
		if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
			return nil, err
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("openai error: %s", resp.Error.Message)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return nil, errors.New("empty response")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", models.NewGenerationError("openai generate", err)
	}
	return result.(string), nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, body, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		preview := string(respBody)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return fmt.Errorf("openai returned status %d: %s", resp.StatusCode, preview)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
