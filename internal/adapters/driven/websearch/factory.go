package websearch

import (
	"fmt"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// NewProvider creates the configured provider.
// Returns nil, nil when web search is disabled.
func NewProvider(provider domain.WebSearchProviderType, apiKey string, ratePerSecond float64, opts ...Option) (driven.WebSearchProvider, error) {
	if ratePerSecond > 0 {
		opts = append([]Option{WithRateLimit(ratePerSecond, 1)}, opts...)
	}

	switch provider {
	case domain.WebSearchDuckDuckGo, "":
		return NewDuckDuckGo(opts...), nil
	case domain.WebSearchTavily:
		t, err := NewTavily(apiKey, "", opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	case domain.WebSearchNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, provider)
	}
}
