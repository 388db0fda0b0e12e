package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// Retriever turns one sub-query into evidence from a single source.
// Returned items have SourceKind, OriginSubQuery and Score set but no
// citation index. Failures wrap domain.ErrRetrieval.
type Retriever interface {
	Retrieve(ctx context.Context, subQuery string, k int) ([]domain.EvidenceItem, error)

	// Kind returns the source kind of every item this retriever produces
	Kind() domain.SourceKind
}

// RetrievalCache stores retrieval results across requests.
// Get returns domain.ErrNotFound on a miss.
type RetrievalCache interface {
	Get(ctx context.Context, key string) ([]domain.EvidenceItem, error)
	Set(ctx context.Context, key string, items []domain.EvidenceItem, ttl time.Duration) error
}
