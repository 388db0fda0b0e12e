package config

import (
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// DefaultConfig returns a configuration that runs against a local Ollama
// with DuckDuckGo web search and no Redis or Postgres
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			CORSOrigins:     []string{"*"},
			RateLimit:       10,
			RateBurst:       20,
			ShutdownTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		LLM: LLMConfig{
			Provider:      string(domain.AIProviderOllama),
			BaseURL:       "http://localhost:11434",
			Model:         "gemma3:27b",
			FallbackModel: "gemma3:4b",
			RefinerModel:  "gemma3:1b",
			NumCtx:        8192,
			Timeout:       120 * time.Second,
		},
		VectorStore: VectorStoreConfig{
			Path:              "./data/chromem",
			Collection:        "agriculture",
			Compress:          true,
			EmbeddingProvider: string(domain.AIProviderOllama),
			EmbeddingModel:    "nomic-embed-text",
			EmbeddingBaseURL:  "http://localhost:11434",
		},
		WebSearch: WebSearchConfig{
			Provider:        string(domain.WebSearchDuckDuckGo),
			RatePerSecond:   1,
			FetchPages:      false,
			MaxContentChars: 2000,
		},
		Pipeline: PipelineConfig{
			NumSubQueries:  domain.DefaultSubQueries,
			DBK:            domain.DefaultDBResults,
			WebK:           domain.DefaultWebResults,
			Budget:         60 * time.Second,
			DBTimeout:      10 * time.Second,
			WebTimeout:     15 * time.Second,
			MaxConcurrency: 8,
		},
		Redis: RedisConfig{
			CacheTTL: time.Hour,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Worker: WorkerConfig{
			Concurrency:    2,
			DequeueTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
