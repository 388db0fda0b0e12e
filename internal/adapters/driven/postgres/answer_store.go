package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.AnswerStore = (*AnswerStore)(nil)

const maxListLimit = 100

// AnswerStore implements driven.AnswerStore using PostgreSQL.
// Options and results are stored as JSONB.
type AnswerStore struct {
	db *sql.DB
}

// NewAnswerStore creates a new AnswerStore
func NewAnswerStore(db *sql.DB) *AnswerStore {
	return &AnswerStore{db: db}
}

// Save inserts or replaces an answer record
func (s *AnswerStore) Save(ctx context.Context, record *domain.AnswerRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("%w: answer record id is required", domain.ErrInvalidInput)
	}

	options, err := json.Marshal(record.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	result, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		INSERT INTO answers (id, task_id, query, options, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			task_id = EXCLUDED.task_id,
			query = EXCLUDED.query,
			options = EXCLUDED.options,
			result = EXCLUDED.result
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.TaskID,
		record.Query,
		options,
		result,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// Get retrieves an answer by ID
func (s *AnswerStore) Get(ctx context.Context, id string) (*domain.AnswerRecord, error) {
	query := `
		SELECT id, task_id, query, options, result, created_at
		FROM answers
		WHERE id = $1
	`
	record, err := scanAnswer(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get answer: %w", err)
	}
	return record, nil
}

// List retrieves the most recent answers, newest first
func (s *AnswerStore) List(ctx context.Context, limit, offset int) ([]*domain.AnswerRecord, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, task_id, query, options, result, created_at
		FROM answers
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	records := []*domain.AnswerRecord{}
	for rows.Next() {
		record, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return records, nil
}

// Delete removes an answer
func (s *AnswerStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM answers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnswer(row scanner) (*domain.AnswerRecord, error) {
	var record domain.AnswerRecord
	var options, result []byte

	if err := row.Scan(
		&record.ID,
		&record.TaskID,
		&record.Query,
		&options,
		&result,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}

	if len(options) > 0 {
		if err := json.Unmarshal(options, &record.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	if len(result) > 0 && string(result) != "null" {
		record.Result = &domain.AnswerResult{}
		if err := json.Unmarshal(result, record.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return &record, nil
}
