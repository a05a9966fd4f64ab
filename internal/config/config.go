package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"rag-backend/models"

	"github.com/joho/godotenv"
)

const (
	ProviderGoogle = "google"
	ProviderOpenAI = "openai"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Model providers
	LLMProvider           string // "google" (default), "openai"
	EmbeddingsProvider    string
	GeminiAPIKey          string
	GeminiTier            string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	ChatModel             string
	GoogleEmbeddingsModel string
	OpenAIEmbeddingsModel string

	// Index
	IndexDir         string
	IndexLockTimeout time.Duration
	MaxChunkSize     int
	ChunkOverlap     int
	DefaultTopK      int

	// Page loading
	FetchTimeout  time.Duration
	RenderJS      bool
	RenderTimeout time.Duration

	// Redis (rate limiting and the async ingestion queue); disabled when empty
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RateLimitReqs   int
	RateLimitWindow int

	// Tracing
	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, models.NewConfigurationError("load .env", err)
		}
	}

	llmProvider := strings.ToLower(getEnv("LLM_PROVIDER", ProviderGoogle))

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		LLMProvider:           llmProvider,
		EmbeddingsProvider:    strings.ToLower(getEnv("EMBEDDINGS_PROVIDER", llmProvider)),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiTier:            getEnv("GEMINI_TIER", "free"),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ChatModel:             getEnv("CHAT_MODEL", defaultChatModel(llmProvider)),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		OpenAIEmbeddingsModel: getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-large"),

		IndexDir:         getEnv("INDEX_DIR", "./index_db"),
		IndexLockTimeout: getEnvDuration("INDEX_LOCK_TIMEOUT", 10*time.Second),
		MaxChunkSize:     getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 200),
		DefaultTopK:      getEnvInt("DEFAULT_TOP_K", 4),

		FetchTimeout:  getEnvDuration("FETCH_TIMEOUT", 60*time.Second),
		RenderJS:      getEnvBool("RENDER_JS", false),
		RenderTimeout: getEnvDuration("RENDER_TIMEOUT", 45*time.Second),

		RedisURL:        getEnv("REDIS_URL", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would make the pipeline unusable. Provider API
// keys are deliberately not checked here; their absence fails each model call
// at request time instead.
func (c *Config) Validate() error {
	for _, p := range []string{c.LLMProvider, c.EmbeddingsProvider} {
		if p != ProviderGoogle && p != ProviderOpenAI {
			return models.NewConfigurationError("validate", fmt.Errorf("unknown provider %q", p))
		}
	}
	if c.MaxChunkSize <= 0 {
		return models.NewConfigurationError("validate", fmt.Errorf("MAX_CHUNK_SIZE must be positive, got %d", c.MaxChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkSize {
		return models.NewConfigurationError("validate", fmt.Errorf("CHUNK_OVERLAP must be in [0, %d), got %d", c.MaxChunkSize, c.ChunkOverlap))
	}
	if c.IndexDir == "" {
		return models.NewConfigurationError("validate", fmt.Errorf("INDEX_DIR is required"))
	}
	return nil
}

// RedisEnabled reports whether Redis-backed features should be wired.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

func defaultChatModel(provider string) string {
	if provider == ProviderOpenAI {
		return "gpt-4o-mini"
	}
	return "gemini-2.0-flash"
}
