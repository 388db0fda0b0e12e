package driven

import (
	"context"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// VectorStore is the local vector-indexed document collection.
// Scores are similarities: higher is more relevant.
type VectorStore interface {
	// Search returns up to k chunks most similar to query.
	// An empty result is valid; an unloaded index is an error.
	Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)

	// Add indexes chunks, embedding them as needed
	Add(ctx context.Context, chunks []domain.ScoredChunk) error

	// Count returns the number of indexed chunks
	Count() int
}
