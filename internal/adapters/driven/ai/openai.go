package ai

import (
	"context"
	"fmt"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// Ensure OpenAIGenerator implements TextGenerator
var _ driven.TextGenerator = (*OpenAIGenerator)(nil)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAIGenerator implements TextGenerator for OpenAI and compatible APIs
// (vLLM, LM Studio, llama.cpp server).
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIGenerator creates a new OpenAI-compatible text generator
func NewOpenAIGenerator(apiKey, model, baseURL string, timeout time.Duration) (*OpenAIGenerator, error) {
	if apiKey == "" && baseURL == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		timeout: timeout,
	}, nil
}

// Generate returns a chat completion for prompt
func (o *OpenAIGenerator) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = o.model
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = o.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai %s: %v", domain.ErrGeneration, model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai %s returned no choices", domain.ErrGeneration, model)
	}
	return resp.Choices[0].Message.Content, nil
}

// ListModels returns the model IDs exposed by the endpoint
func (o *OpenAIGenerator) ListModels(ctx context.Context) ([]string, error) {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", domain.ErrServiceUnavailable, err)
	}
	models := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, m.ID)
	}
	sort.Strings(models)
	return models, nil
}

// Model returns the default model name
func (o *OpenAIGenerator) Model() string {
	return o.model
}

// Ping verifies the endpoint is reachable
func (o *OpenAIGenerator) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := o.ListModels(ctx)
	return err
}

// Close releases resources held by the generator
func (o *OpenAIGenerator) Close() error {
	return nil
}
