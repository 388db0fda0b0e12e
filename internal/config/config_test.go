package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "agriculture", cfg.VectorStore.Collection)
}

func TestLoader_NoFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")).
		WithEnvLookup(envMap(nil)).
		Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
llm:
  provider: openai
  api_key: sk-test
  model: gpt-4o-mini
  agents:
    - role: crop_specialist
      endpoint: http://gpu-1:11434
      model: gemma3:27b
    - role: disease_expert
      endpoint: http://gpu-2:11434
web_search:
  provider: tavily
  api_key: tvly-test
pipeline:
  budget: 45s
`)

	cfg, err := NewLoader().WithConfigPath(path).WithEnvLookup(envMap(nil)).Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.Budget)
	require.Len(t, cfg.LLM.Agents, 2)
	assert.Equal(t, domain.AgentRoleDiseaseExpert, cfg.LLM.Agents[1].Role)
	assert.Equal(t, "http://gpu-2:11434", cfg.LLM.Agents[1].Endpoint)

	// untouched sections keep their defaults
	assert.Equal(t, "gemma3:4b", cfg.LLM.FallbackModel)
	assert.Equal(t, 2, cfg.Worker.Concurrency)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := NewLoader().WithConfigPath(path).WithEnvLookup(envMap(map[string]string{
		"AGRISEARCH_SERVER_PORT":                "7070",
		"AGRISEARCH_SERVER_CORS_ORIGINS":        "https://a.example, https://b.example",
		"AGRISEARCH_REDIS_URL":                  "redis://localhost:6379/0",
		"AGRISEARCH_REDIS_CACHE_TTL":            "10m",
		"AGRISEARCH_WEB_SEARCH_FETCH_PAGES":     "true",
		"AGRISEARCH_WEB_SEARCH_RATE_PER_SECOND": "0.5",
		"AGRISEARCH_VECTOR_STORE_PATH":          "/var/lib/agrisearch",
	})).Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 10*time.Minute, cfg.Redis.CacheTTL)
	assert.True(t, cfg.WebSearch.FetchPages)
	assert.Equal(t, 0.5, cfg.WebSearch.RatePerSecond)
	assert.Equal(t, "/var/lib/agrisearch", cfg.VectorStore.Path)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	_, err := NewLoader().WithEnvLookup(envMap(map[string]string{
		"AGRISEARCH_SERVER_PORT": "eighty",
	})).Load()
	assert.Error(t, err)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	_, err := NewLoader().WithConfigPath(path).WithEnvLookup(envMap(nil)).Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"auth without secret", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.ClientID = "app"
			c.Auth.ClientSecretHash = "$2a$hash"
		}},
		{"auth without client", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.JWTSecret = "s"
		}},
		{"unknown llm provider", func(c *Config) { c.LLM.Provider = "bard" }},
		{"unknown agent role", func(c *Config) {
			c.LLM.Agents = []domain.AgentConfig{{Role: "astrologer", Endpoint: "http://x"}}
		}},
		{"agent without endpoint", func(c *Config) {
			c.LLM.Agents = []domain.AgentConfig{{Role: domain.AgentRolePolicyAnalyst}}
		}},
		{"unknown web provider", func(c *Config) { c.WebSearch.Provider = "bing" }},
		{"tavily without key", func(c *Config) { c.WebSearch.Provider = "tavily" }},
		{"zero budget", func(c *Config) { c.Pipeline.Budget = 0 }},
		{"no workers", func(c *Config) { c.Worker.Concurrency = 0 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad metrics path", func(c *Config) { c.Metrics.Path = "metrics" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPipelineConfig_AnswerDefaults(t *testing.T) {
	p := DefaultConfig().Pipeline
	p.NumSubQueries = 9
	p.WebK = 0

	opts := p.AnswerDefaults()
	assert.Equal(t, domain.MaxSubQueries, opts.NumSubQueries)
	assert.Equal(t, domain.DefaultWebResults, opts.WebK)
	assert.True(t, opts.EnableDB)
	assert.True(t, opts.EnableWeb)
}

func TestLLMConfig_Settings(t *testing.T) {
	settings := DefaultConfig().LLM.Settings()
	assert.Equal(t, domain.AIProviderOllama, settings.Provider)
	assert.True(t, settings.IsConfigured())
}

func TestLoggingConfig_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "json"}.Logger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "source", "web")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"source":"web"`)
}
