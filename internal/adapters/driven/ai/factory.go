package ai

import (
	"fmt"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory creates text generators based on configuration
type Factory struct{}

// NewFactory creates a new AI service factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateTextGenerator creates a text generator from settings
func (f *Factory) CreateTextGenerator(settings *domain.LLMSettings) (driven.TextGenerator, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var (
		gen driven.TextGenerator
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		gen, err = NewOpenAIGenerator(settings.APIKey, settings.Model, settings.BaseURL, settings.Timeout)
	case domain.AIProviderOllama:
		gen, err = NewOllamaGenerator(settings.BaseURL, settings.Model, settings.Timeout)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
	if err != nil {
		return nil, err
	}
	return gen, nil
}
