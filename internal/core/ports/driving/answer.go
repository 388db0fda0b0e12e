package driving

import (
	"context"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// AnswerService answers agricultural questions from local and web evidence
type AnswerService interface {
	// Answer runs refine -> sub-queries -> evidence -> synthesis for one query.
	// Returns domain.ErrServiceUnavailable only when no language model is reachable.
	Answer(ctx context.Context, rawQuery string, opts domain.AnswerOptions) (*domain.AnswerResult, error)

	// Models lists the models available on the primary generator
	Models(ctx context.Context) ([]string, error)
}
