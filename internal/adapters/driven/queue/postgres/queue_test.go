package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

var taskRowColumns = []string{
	"id", "type", "client_id", "payload", "status", "attempts", "max_attempts",
	"error", "result_id", "created_at", "updated_at", "started_at", "completed_at", "scheduled_for",
}

func setupQueue(t *testing.T) (*Queue, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewQueue(db), mock
}

func taskRow(id string, status domain.TaskStatus, attempts, maxAttempts int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(taskRowColumns).AddRow(
		id, "answer", "client-1", []byte(`{"query":"paddy water depth"}`), string(status),
		attempts, maxAttempts, "", "", now, now, nil, nil, now,
	)
}

func TestQueue_Enqueue(t *testing.T) {
	q, mock := setupQueue(t)
	task, err := domain.NewAnswerTask("client-1", "paddy water depth", domain.DefaultAnswerOptions())
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, q.Enqueue(context.Background(), task))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_EnqueueNil(t *testing.T) {
	q, _ := setupQueue(t)
	assert.ErrorIs(t, q.Enqueue(context.Background(), nil), domain.ErrInvalidInput)
}

func TestQueue_Dequeue(t *testing.T) {
	q, mock := setupQueue(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs(domain.TaskStatusPending).
		WillReturnRows(taskRow("task-1", domain.TaskStatusPending, 0, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
		WithArgs(domain.TaskStatusProcessing, sqlmock.AnyArg(), sqlmock.AnyArg(), 1, "task-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	task, err := q.DequeueWithTimeout(context.Background(), 0)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, domain.TaskStatusProcessing, task.Status)
	assert.Equal(t, 1, task.Attempts)
	assert.Equal(t, "paddy water depth", task.Payload["query"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q, mock := setupQueue(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	task, err := q.DequeueWithTimeout(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestQueue_Complete(t *testing.T) {
	q, mock := setupQueue(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
		WithArgs(domain.TaskStatusCompleted, sqlmock.AnyArg(), "ans-1", "task-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
		WithArgs(domain.TaskStatusCompleted, sqlmock.AnyArg(), "ans-2", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, q.Complete(context.Background(), "task-1", "ans-1"))
	assert.ErrorIs(t, q.Complete(context.Background(), "missing", "ans-2"), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_NackRetries(t *testing.T) {
	q, mock := setupQueue(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).
		WithArgs("task-1").
		WillReturnRows(taskRow("task-1", domain.TaskStatusProcessing, 1, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
		WithArgs(domain.TaskStatusPending, "boom", sqlmock.AnyArg(), sqlmock.AnyArg(), "task-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, q.Nack(context.Background(), "task-1", "boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_NackFailsAfterMaxAttempts(t *testing.T) {
	q, mock := setupQueue(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).
		WithArgs("task-1").
		WillReturnRows(taskRow("task-1", domain.TaskStatusProcessing, 3, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
		WithArgs(domain.TaskStatusFailed, "boom", sqlmock.AnyArg(), sqlmock.AnyArg(), "task-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, q.Nack(context.Background(), "task-1", "boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_GetTaskNotFound(t *testing.T) {
	q, mock := setupQueue(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := q.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueue_CancelTask(t *testing.T) {
	q, mock := setupQueue(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
		WithArgs(domain.TaskStatusCancelled, sqlmock.AnyArg(), "task-1", domain.TaskStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, q.CancelTask(context.Background(), "task-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_CancelTaskNotPending(t *testing.T) {
	q, mock := setupQueue(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).
		WithArgs("task-1").
		WillReturnRows(taskRow("task-1", domain.TaskStatusProcessing, 1, 3))

	err := q.CancelTask(context.Background(), "task-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_Stats(t *testing.T) {
	q, mock := setupQueue(t)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 4).
			AddRow("processing", 1).
			AddRow("completed", 9).
			AddRow("failed", 2).
			AddRow("cancelled", 3))

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.PendingCount)
	assert.Equal(t, int64(1), stats.ProcessingCount)
	assert.Equal(t, int64(9), stats.CompletedCount)
	assert.Equal(t, int64(2), stats.FailedCount)
}
