package driven

import (
	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// AIServiceFactory creates text generators based on configuration
type AIServiceFactory interface {
	// CreateTextGenerator creates a generator from settings
	// Returns nil, nil if settings are not configured
	CreateTextGenerator(settings *domain.LLMSettings) (TextGenerator, error)
}
