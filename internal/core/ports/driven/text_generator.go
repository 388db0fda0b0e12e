package driven

import (
	"context"
	"time"
)

// GenerateOptions tunes a single generation call
type GenerateOptions struct {
	// Model overrides the generator's default model when set
	Model string

	// System is an optional system prompt
	System string

	// Temperature controls sampling randomness
	Temperature float64

	// MaxTokens limits the response length (0 = provider default)
	MaxTokens int

	// NumCtx is the context window hint for local models (0 = provider default)
	NumCtx int

	// Timeout bounds the call; zero means the generator's own timeout
	Timeout time.Duration
}

// TextGenerator provides language model completions.
// Implementations wrap failures in domain.ErrGeneration.
type TextGenerator interface {
	// Generate returns the model's completion for prompt
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ListModels returns the models available on the endpoint
	ListModels(ctx context.Context) ([]string, error)

	// Model returns the default model name being used
	Model() string

	// Ping verifies the endpoint is available
	Ping(ctx context.Context) error

	// Close releases resources held by the generator
	Close() error
}

// GeneratorResolver looks up the generator for an agent endpoint.
// Returns nil if no generator is registered for the endpoint.
type GeneratorResolver interface {
	AgentGenerator(endpoint string) TextGenerator
}
