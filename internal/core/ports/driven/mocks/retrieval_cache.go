package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// MockRetrievalCache is an in-memory RetrievalCache for testing
type MockRetrievalCache struct {
	mu      sync.Mutex
	entries map[string][]domain.EvidenceItem
	failGet bool
	sets    int
}

// NewMockRetrievalCache creates a new MockRetrievalCache
func NewMockRetrievalCache() *MockRetrievalCache {
	return &MockRetrievalCache{entries: make(map[string][]domain.EvidenceItem)}
}

func (m *MockRetrievalCache) Get(ctx context.Context, key string) ([]domain.EvidenceItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("mock cache unavailable")
	}
	items, ok := m.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]domain.EvidenceItem(nil), items...), nil
}

func (m *MockRetrievalCache) Set(ctx context.Context, key string, items []domain.EvidenceItem, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append([]domain.EvidenceItem(nil), items...)
	m.sets++
	return nil
}

// Helper methods for testing

// SetFailGet makes Get return a non-miss error
func (m *MockRetrievalCache) SetFailGet(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet = fail
}

// SetCount returns the number of Set calls
func (m *MockRetrievalCache) SetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}
