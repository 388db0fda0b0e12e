package driven

import (
	"context"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// WebSearchProvider runs live web searches
type WebSearchProvider interface {
	// Search returns up to k results for query
	Search(ctx context.Context, query string, k int) ([]domain.WebResult, error)

	// Name returns the provider name for logging
	Name() string
}

// PageFetcher downloads a page and returns its plain text
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}
