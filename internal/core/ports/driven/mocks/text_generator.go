package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// MockTextGenerator is a mock implementation of TextGenerator for testing.
// Responses are chosen by the first rule whose substring appears in the
// prompt; otherwise the default response is returned.
type MockTextGenerator struct {
	mu        sync.Mutex
	model     string
	rules     []mockRule
	response  string
	failAll   bool
	failModel map[string]bool
	failNext  int
	models    []string
	calls     []MockCall
}

type mockRule struct {
	contains string
	response string
	err      error
}

// MockCall records one Generate invocation
type MockCall struct {
	Prompt string
	Opts   driven.GenerateOptions
}

// NewMockTextGenerator creates a new MockTextGenerator
func NewMockTextGenerator() *MockTextGenerator {
	return &MockTextGenerator{
		model:     "mock-model",
		failModel: make(map[string]bool),
	}
}

func (m *MockTextGenerator) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Prompt: prompt, Opts: opts})

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if m.failAll {
		return "", fmt.Errorf("%w: mock endpoint unreachable", domain.ErrGeneration)
	}
	if m.failNext > 0 {
		m.failNext--
		return "", fmt.Errorf("%w: mock failure", domain.ErrGeneration)
	}
	model := opts.Model
	if model == "" {
		model = m.model
	}
	if m.failModel[model] {
		return "", fmt.Errorf("%w: model %s unavailable", domain.ErrGeneration, model)
	}

	for _, rule := range m.rules {
		if strings.Contains(prompt, rule.contains) {
			if rule.err != nil {
				return "", rule.err
			}
			return rule.response, nil
		}
	}
	return m.response, nil
}

func (m *MockTextGenerator) ListModels(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, fmt.Errorf("%w: mock endpoint unreachable", domain.ErrGeneration)
	}
	if m.models == nil {
		return []string{m.model}, nil
	}
	return m.models, nil
}

func (m *MockTextGenerator) Model() string {
	return m.model
}

func (m *MockTextGenerator) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return fmt.Errorf("%w: mock endpoint unreachable", domain.ErrServiceUnavailable)
	}
	return nil
}

func (m *MockTextGenerator) Close() error {
	return nil
}

// Helper methods for testing

// SetResponse sets the default response
func (m *MockTextGenerator) SetResponse(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
}

// When returns response for prompts containing substr
func (m *MockTextGenerator) When(substr, response string) *MockTextGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{contains: substr, response: response})
	return m
}

// WhenFail returns err for prompts containing substr
func (m *MockTextGenerator) WhenFail(substr string, err error) *MockTextGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{contains: substr, err: err})
	return m
}

// SetFailAll makes every call fail
func (m *MockTextGenerator) SetFailAll(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = fail
}

// SetFailNext makes the next n calls fail
func (m *MockTextGenerator) SetFailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// SetFailModel makes calls for a specific model fail
func (m *MockTextGenerator) SetFailModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failModel[model] = true
}

// SetModel sets the default model name
func (m *MockTextGenerator) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}

// SetModels sets the models returned by ListModels
func (m *MockTextGenerator) SetModels(models []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models = models
}

// Calls returns a copy of the recorded calls
func (m *MockTextGenerator) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}
