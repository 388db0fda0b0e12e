package driven

import (
	"context"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// AnswerStore persists answers produced by async jobs
type AnswerStore interface {
	// Save stores an answer record
	Save(ctx context.Context, record *domain.AnswerRecord) error

	// Get retrieves a record by ID
	Get(ctx context.Context, id string) (*domain.AnswerRecord, error)

	// List retrieves the most recent records
	List(ctx context.Context, limit, offset int) ([]*domain.AnswerRecord, error)

	// Delete removes a record
	Delete(ctx context.Context, id string) error
}
