package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// MockAnswerStore is an in-memory AnswerStore for testing
type MockAnswerStore struct {
	mu      sync.RWMutex
	records map[string]*domain.AnswerRecord
	saveErr error
}

// NewMockAnswerStore creates a new MockAnswerStore
func NewMockAnswerStore() *MockAnswerStore {
	return &MockAnswerStore{records: make(map[string]*domain.AnswerRecord)}
}

func (m *MockAnswerStore) Save(ctx context.Context, record *domain.AnswerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[record.ID] = record
	return nil
}

func (m *MockAnswerStore) Get(ctx context.Context, id string) (*domain.AnswerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return record, nil
}

func (m *MockAnswerStore) List(ctx context.Context, limit, offset int) ([]*domain.AnswerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*domain.AnswerRecord, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if offset >= len(records) {
		return []*domain.AnswerRecord{}, nil
	}
	records = records[offset:]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MockAnswerStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

// Helper methods for testing

func (m *MockAnswerStore) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}
