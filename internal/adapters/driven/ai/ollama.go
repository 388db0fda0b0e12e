package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// Ensure OllamaGenerator implements TextGenerator
var _ driven.TextGenerator = (*OllamaGenerator)(nil)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "gemma3:27b"
	defaultLLMTimeout  = 120 * time.Second
)

// OllamaGenerator implements TextGenerator against a local Ollama server
type OllamaGenerator struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
}

// NewOllamaGenerator creates a new Ollama text generator
func NewOllamaGenerator(baseURL, model string, timeout time.Duration) (*OllamaGenerator, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}

	return &OllamaGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: timeout,
		client:  &http.Client{},
	}, nil
}

// ollamaGenerateRequest is the request body for /api/generate
type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	System  string                 `json:"system,omitempty"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// ollamaGenerateResponse is the response from /api/generate
type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// ollamaTagsResponse is the response from /api/tags
type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Generate returns a non-streamed completion
func (o *OllamaGenerator) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
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

	options := map[string]interface{}{
		"temperature": opts.Temperature,
	}
	if opts.NumCtx > 0 {
		options["num_ctx"] = opts.NumCtx
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   model,
		Prompt:  prompt,
		System:  opts.System,
		Stream:  false,
		Options: options,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp ollamaGenerateResponse
	if err := o.doRequest(ctx, http.MethodPost, "/api/generate", body, &resp); err != nil {
		return "", fmt.Errorf("%w: ollama %s: %v", domain.ErrGeneration, model, err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%w: ollama %s: %s", domain.ErrGeneration, model, resp.Error)
	}
	return resp.Response, nil
}

// ListModels returns the models pulled on the server
func (o *OllamaGenerator) ListModels(ctx context.Context) ([]string, error) {
	var resp ollamaTagsResponse
	if err := o.doRequest(ctx, http.MethodGet, "/api/tags", nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: ollama: %v", domain.ErrServiceUnavailable, err)
	}
	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// Model returns the default model name
func (o *OllamaGenerator) Model() string {
	return o.model
}

// Ping verifies the server is reachable
func (o *OllamaGenerator) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := o.ListModels(ctx)
	return err
}

// Close releases idle connections
func (o *OllamaGenerator) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// doRequest makes a request to the Ollama API and decodes the JSON response
func (o *OllamaGenerator) doRequest(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
