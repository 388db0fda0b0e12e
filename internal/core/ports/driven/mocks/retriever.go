package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// MockRetriever is a mock implementation of Retriever for testing.
// Results are keyed by sub-query.
type MockRetriever struct {
	mu       sync.Mutex
	kind     domain.SourceKind
	results  map[string][]domain.EvidenceItem
	failFor  map[string]bool
	failAll  bool
	delay    time.Duration
	delayFor map[string]time.Duration
	calls    []string
}

// NewMockRetriever creates a new MockRetriever for kind
func NewMockRetriever(kind domain.SourceKind) *MockRetriever {
	return &MockRetriever{
		kind:     kind,
		results:  make(map[string][]domain.EvidenceItem),
		failFor:  make(map[string]bool),
		delayFor: make(map[string]time.Duration),
	}
}

func (m *MockRetriever) Retrieve(ctx context.Context, subQuery string, k int) ([]domain.EvidenceItem, error) {
	m.mu.Lock()
	m.calls = append(m.calls, subQuery)
	delay := m.delay
	if d, ok := m.delayFor[subQuery]; ok {
		delay = d
	}
	fail := m.failAll || m.failFor[subQuery]
	items := append([]domain.EvidenceItem(nil), m.results[subQuery]...)
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, domain.NewRetrievalError(m.kind, subQuery, ctx.Err())
		}
	}
	if fail {
		return nil, domain.NewRetrievalError(m.kind, subQuery, fmt.Errorf("mock %s backend down", m.kind))
	}

	if k > 0 && len(items) > k {
		items = items[:k]
	}
	for i := range items {
		items[i].SourceKind = m.kind
		items[i].OriginSubQuery = subQuery
	}
	return items, nil
}

func (m *MockRetriever) Kind() domain.SourceKind {
	return m.kind
}

// Helper methods for testing

// AddResult registers an item for subQuery
func (m *MockRetriever) AddResult(subQuery string, item domain.EvidenceItem) *MockRetriever {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[subQuery] = append(m.results[subQuery], item)
	return m
}

// SetFailAll makes every call fail
func (m *MockRetriever) SetFailAll(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = fail
}

// SetFailFor makes calls for subQuery fail
func (m *MockRetriever) SetFailFor(subQuery string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor[subQuery] = true
}

// SetDelay delays every call
func (m *MockRetriever) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetDelayFor delays calls for subQuery
func (m *MockRetriever) SetDelayFor(subQuery string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delayFor[subQuery] = d
}

// Calls returns the sub-queries retrieved so far
func (m *MockRetriever) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
