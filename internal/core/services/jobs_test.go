package services

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven/mocks"
)

func newTestJobService() (*orchestratorFixture, *mocks.MockTaskQueue, *mocks.MockAnswerStore, *jobService) {
	f := newOrchestratorFixture()
	queue := mocks.NewMockTaskQueue()
	store := mocks.NewMockAnswerStore()
	svc := NewJobService(f.build(OrchestratorConfig{}, nil), queue, store, nil)
	return f, queue, store, svc.(*jobService)
}

func TestJobService_SubmitAndProcess(t *testing.T) {
	_, queue, store, svc := newTestJobService()
	ctx := context.Background()

	opts := domain.DefaultAnswerOptions()
	opts.NumSubQueries = 2
	task, err := svc.Submit(ctx, "field-app", riceQuestion, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != domain.TaskStatusPending || task.ClientID != "field-app" {
		t.Errorf("unexpected task %+v", task)
	}

	dequeued, err := queue.DequeueWithTimeout(ctx, 1)
	if err != nil || dequeued == nil {
		t.Fatalf("expected task to be dequeued, got %v %v", dequeued, err)
	}

	record, err := svc.Process(ctx, dequeued)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.TaskID != task.ID || record.Query != riceQuestion {
		t.Errorf("unexpected record %+v", record)
	}
	if record.Options.NumSubQueries != 2 {
		t.Errorf("expected options carried through payload, got %+v", record.Options)
	}

	stored, err := store.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("expected stored answer: %v", err)
	}
	if stored.Result == nil || stored.Result.Answer == "" {
		t.Error("expected stored result with answer")
	}

	got, err := svc.GetAnswer(ctx, record.ID)
	if err != nil || got.ID != record.ID {
		t.Errorf("GetAnswer() = %v, %v", got, err)
	}
	list, err := svc.ListAnswers(ctx, 0, 0)
	if err != nil || len(list) != 1 {
		t.Errorf("ListAnswers() = %v, %v", list, err)
	}
}

func TestJobService_SubmitValidation(t *testing.T) {
	_, queue, _, svc := newTestJobService()
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "", " ", domain.DefaultAnswerOptions()); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Submit(ctx, "", "q", domain.AnswerOptions{}); !errors.Is(err, domain.ErrNoSourcesEnabled) {
		t.Errorf("expected ErrNoSourcesEnabled, got %v", err)
	}

	queue.SetEnqueueError(errors.New("redis down"))
	if _, err := svc.Submit(ctx, "", "q", domain.DefaultAnswerOptions()); err == nil {
		t.Error("expected enqueue error")
	}
}

func TestJobService_StatusAndCancel(t *testing.T) {
	_, _, _, svc := newTestJobService()
	ctx := context.Background()

	task, err := svc.Submit(ctx, "", riceQuestion, domain.DefaultAnswerOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Cancel(ctx, task.ID); err != nil {
		t.Fatalf("unexpected cancel error: %v", err)
	}
	status, err := svc.Status(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Status != domain.TaskStatusCancelled {
		t.Errorf("expected cancelled, got %s", status.Status)
	}
	if err := svc.Cancel(ctx, task.ID); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput cancelling twice, got %v", err)
	}
	if _, err := svc.Status(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJobService_ProcessErrors(t *testing.T) {
	f, _, store, svc := newTestJobService()
	ctx := context.Background()

	if _, err := svc.Process(ctx, &domain.Task{Type: "reindex"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown type, got %v", err)
	}
	if _, err := svc.Process(ctx, &domain.Task{Type: domain.TaskTypeAnswer}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty payload, got %v", err)
	}

	task, _ := domain.NewAnswerTask("", riceQuestion, domain.DefaultAnswerOptions())
	store.SetSaveError(errors.New("disk full"))
	if _, err := svc.Process(ctx, task); err == nil {
		t.Error("expected save error")
	}

	store.SetSaveError(nil)
	f.gen.SetFailAll(true)
	if _, err := svc.Process(ctx, task); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
}
