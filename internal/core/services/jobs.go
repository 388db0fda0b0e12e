package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driving"
)

// Ensure jobService implements JobService
var _ driving.JobService = (*jobService)(nil)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// jobService implements the JobService interface
type jobService struct {
	answers driving.AnswerService
	queue   driven.TaskQueue
	store   driven.AnswerStore
	logger  *slog.Logger
}

// NewJobService creates a new JobService
func NewJobService(
	answers driving.AnswerService,
	queue driven.TaskQueue,
	store driven.AnswerStore,
	logger *slog.Logger,
) driving.JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &jobService{
		answers: answers,
		queue:   queue,
		store:   store,
		logger:  logger,
	}
}

// Submit validates the request and enqueues an answer task
func (s *jobService) Submit(ctx context.Context, clientID, query string, opts domain.AnswerOptions) (*domain.Task, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, fmt.Errorf("%w: task queue not configured", domain.ErrServiceUnavailable)
	}

	task, err := domain.NewAnswerTask(clientID, query, opts)
	if err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue answer task: %w", err)
	}

	s.logger.Info("answer job submitted", "task_id", task.ID, "client_id", clientID)
	return task, nil
}

// Status returns the task for a job
func (s *jobService) Status(ctx context.Context, taskID string) (*domain.Task, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("%w: task queue not configured", domain.ErrServiceUnavailable)
	}
	return s.queue.GetTask(ctx, taskID)
}

// Cancel cancels a pending job
func (s *jobService) Cancel(ctx context.Context, taskID string) error {
	if s.queue == nil {
		return fmt.Errorf("%w: task queue not configured", domain.ErrServiceUnavailable)
	}
	return s.queue.CancelTask(ctx, taskID)
}

// Process answers the task's query and stores the result.
// Acknowledging the task is left to the caller.
func (s *jobService) Process(ctx context.Context, task *domain.Task) (*domain.AnswerRecord, error) {
	if task.Type != domain.TaskTypeAnswer {
		return nil, fmt.Errorf("%w: unsupported task type %q", domain.ErrInvalidInput, task.Type)
	}

	query, opts, err := task.AnswerPayload()
	if err != nil {
		return nil, fmt.Errorf("decode answer payload: %w", err)
	}

	result, err := s.answers.Answer(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	record := &domain.AnswerRecord{
		ID:        result.RequestID,
		TaskID:    task.ID,
		Query:     query,
		Options:   opts,
		Result:    result,
		CreatedAt: time.Now(),
	}
	if record.ID == "" {
		record.ID = domain.GenerateID()
	}

	if s.store != nil {
		if err := s.store.Save(ctx, record); err != nil {
			return nil, fmt.Errorf("save answer: %w", err)
		}
	}

	s.logger.Info("answer job processed", "task_id", task.ID, "answer_id", record.ID)
	return record, nil
}

// GetAnswer retrieves a stored answer
func (s *jobService) GetAnswer(ctx context.Context, id string) (*domain.AnswerRecord, error) {
	if s.store == nil {
		return nil, domain.ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// ListAnswers lists the most recent stored answers
func (s *jobService) ListAnswers(ctx context.Context, limit, offset int) ([]*domain.AnswerRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	if s.store == nil {
		return []*domain.AnswerRecord{}, nil
	}
	return s.store.List(ctx, limit, offset)
}
