// Package config loads service configuration from defaults, an optional
// YAML file and AGRISEARCH_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// Config is the full service configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" env:"SERVER"`
	Auth        AuthConfig        `yaml:"auth" env:"AUTH"`
	LLM         LLMConfig         `yaml:"llm" env:"LLM"`
	VectorStore VectorStoreConfig `yaml:"vector_store" env:"VECTOR_STORE"`
	WebSearch   WebSearchConfig   `yaml:"web_search" env:"WEB_SEARCH"`
	Pipeline    PipelineConfig    `yaml:"pipeline" env:"PIPELINE"`
	Redis       RedisConfig       `yaml:"redis" env:"REDIS"`
	Database    DatabaseConfig    `yaml:"database" env:"DATABASE"`
	Worker      WorkerConfig      `yaml:"worker" env:"WORKER"`
	Logging     LoggingConfig     `yaml:"logging" env:"LOGGING"`
	Metrics     MetricsConfig     `yaml:"metrics" env:"METRICS"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS"`
	RateLimit       float64       `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst       int           `yaml:"rate_burst" env:"RATE_BURST"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// AuthConfig configures bearer-token auth for API clients
type AuthConfig struct {
	Enabled          bool          `yaml:"enabled" env:"ENABLED"`
	JWTSecret        string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	ClientID         string        `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecretHash string        `yaml:"client_secret_hash" env:"CLIENT_SECRET_HASH"`
	TokenTTL         time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
}

// LLMConfig configures the language model backends
type LLMConfig struct {
	Provider      string        `yaml:"provider" env:"PROVIDER"`
	BaseURL       string        `yaml:"base_url" env:"BASE_URL"`
	APIKey        string        `yaml:"api_key" env:"API_KEY"`
	Model         string        `yaml:"model" env:"MODEL"`
	FallbackModel string        `yaml:"fallback_model" env:"FALLBACK_MODEL"`
	RefinerModel  string        `yaml:"refiner_model" env:"REFINER_MODEL"`
	NumCtx        int           `yaml:"num_ctx" env:"NUM_CTX"`
	Timeout       time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// Agents assigns roles to endpoints; YAML only
	Agents []domain.AgentConfig `yaml:"agents" env:"-"`
}

// VectorStoreConfig configures the local chromem collection
type VectorStoreConfig struct {
	Path              string `yaml:"path" env:"PATH"`
	Collection        string `yaml:"collection" env:"COLLECTION"`
	Compress          bool   `yaml:"compress" env:"COMPRESS"`
	EmbeddingProvider string `yaml:"embedding_provider" env:"EMBEDDING_PROVIDER"`
	EmbeddingModel    string `yaml:"embedding_model" env:"EMBEDDING_MODEL"`
	EmbeddingBaseURL  string `yaml:"embedding_base_url" env:"EMBEDDING_BASE_URL"`
	EmbeddingAPIKey   string `yaml:"embedding_api_key" env:"EMBEDDING_API_KEY"`
}

// WebSearchConfig configures the web search provider
type WebSearchConfig struct {
	Provider        string  `yaml:"provider" env:"PROVIDER"`
	APIKey          string  `yaml:"api_key" env:"API_KEY"`
	RatePerSecond   float64 `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
	FetchPages      bool    `yaml:"fetch_pages" env:"FETCH_PAGES"`
	MaxContentChars int     `yaml:"max_content_chars" env:"MAX_CONTENT_CHARS"`
}

// PipelineConfig holds answer pipeline defaults and limits
type PipelineConfig struct {
	NumSubQueries  int           `yaml:"num_sub_queries" env:"NUM_SUB_QUERIES"`
	DBK            int           `yaml:"db_k" env:"DB_K"`
	WebK           int           `yaml:"web_k" env:"WEB_K"`
	Budget         time.Duration `yaml:"budget" env:"BUDGET"`
	DBTimeout      time.Duration `yaml:"db_timeout" env:"DB_TIMEOUT"`
	WebTimeout     time.Duration `yaml:"web_timeout" env:"WEB_TIMEOUT"`
	MaxConcurrency int           `yaml:"max_concurrency" env:"MAX_CONCURRENCY"`
}

// RedisConfig configures the retrieval cache and job queue
type RedisConfig struct {
	URL      string        `yaml:"url" env:"URL"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// DatabaseConfig configures the Postgres answer store
type DatabaseConfig struct {
	URL             string        `yaml:"url" env:"URL"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// WorkerConfig configures the async job worker
type WorkerConfig struct {
	Concurrency    int `yaml:"concurrency" env:"CONCURRENCY"`
	DequeueTimeout int `yaml:"dequeue_timeout" env:"DEQUEUE_TIMEOUT"`
}

// LoggingConfig configures slog
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" env:"PATH"`
}

// Addr returns host:port for the HTTP listener
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AnswerDefaults returns the pipeline defaults as answer options
func (p PipelineConfig) AnswerDefaults() domain.AnswerOptions {
	opts := domain.DefaultAnswerOptions()
	opts.NumSubQueries = p.NumSubQueries
	opts.DBK = p.DBK
	opts.WebK = p.WebK
	return opts.Normalize()
}

// Settings converts the LLM section into provider settings
func (l LLMConfig) Settings() *domain.LLMSettings {
	return &domain.LLMSettings{
		Provider: domain.AIProvider(l.Provider),
		Model:    l.Model,
		APIKey:   l.APIKey,
		BaseURL:  l.BaseURL,
		Timeout:  l.Timeout,
	}
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("auth.jwt_secret is required when auth is enabled"))
		}
		if c.Auth.ClientID == "" || c.Auth.ClientSecretHash == "" {
			errs = append(errs, errors.New("auth.client_id and auth.client_secret_hash are required when auth is enabled"))
		}
		if c.Auth.TokenTTL <= 0 {
			errs = append(errs, errors.New("auth.token_ttl must be positive"))
		}
	}
	if !domain.AIProvider(c.LLM.Provider).IsValid() {
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	for i, agent := range c.LLM.Agents {
		if !agent.Role.IsValid() {
			errs = append(errs, fmt.Errorf("llm.agents[%d]: unknown role %q", i, agent.Role))
		}
		if strings.TrimSpace(agent.Endpoint) == "" {
			errs = append(errs, fmt.Errorf("llm.agents[%d]: endpoint is required", i))
		}
	}
	if !domain.WebSearchProviderType(c.WebSearch.Provider).IsValid() {
		errs = append(errs, fmt.Errorf("web_search.provider %q is not supported", c.WebSearch.Provider))
	}
	if c.WebSearch.Provider == string(domain.WebSearchTavily) && c.WebSearch.APIKey == "" {
		errs = append(errs, errors.New("web_search.api_key is required for tavily"))
	}
	if c.Pipeline.Budget <= 0 {
		errs = append(errs, errors.New("pipeline.budget must be positive"))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, errors.New("worker.concurrency must be at least 1"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path))
	}

	return errors.Join(errs...)
}
