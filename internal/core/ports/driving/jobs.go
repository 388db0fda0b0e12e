package driving

import (
	"context"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// JobService runs answer requests asynchronously through the task queue
type JobService interface {
	// Submit enqueues an answer job and returns the pending task
	Submit(ctx context.Context, clientID, query string, opts domain.AnswerOptions) (*domain.Task, error)

	// Status returns the task for a job
	Status(ctx context.Context, taskID string) (*domain.Task, error)

	// Cancel cancels a pending job
	Cancel(ctx context.Context, taskID string) error

	// Process runs one dequeued answer task and stores its result
	Process(ctx context.Context, task *domain.Task) (*domain.AnswerRecord, error)

	// GetAnswer retrieves a stored answer
	GetAnswer(ctx context.Context, id string) (*domain.AnswerRecord, error)

	// ListAnswers lists the most recent stored answers
	ListAnswers(ctx context.Context, limit, offset int) ([]*domain.AnswerRecord, error)
}
