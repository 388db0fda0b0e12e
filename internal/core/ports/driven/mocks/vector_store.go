package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// MockVectorStore is a mock implementation of VectorStore for testing.
// Similarity is the fraction of query words found in the chunk text.
type MockVectorStore struct {
	mu       sync.RWMutex
	chunks   []domain.ScoredChunk
	failNext bool
}

// NewMockVectorStore creates a new MockVectorStore
func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{}
}

func (m *MockVectorStore) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	m.mu.Lock()
	if m.failNext {
		m.failNext = false
		m.mu.Unlock()
		return nil, fmt.Errorf("mock vector store unavailable")
	}
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.chunks) == 0 {
		return nil, fmt.Errorf("%w: index is empty", domain.ErrRetrieval)
	}

	words := strings.Fields(strings.ToLower(query))
	var results []domain.ScoredChunk
	for _, chunk := range m.chunks {
		text := strings.ToLower(chunk.Text)
		hits := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		c := chunk
		c.Score = float64(hits) / float64(len(words))
		results = append(results, c)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *MockVectorStore) Add(ctx context.Context, chunks []domain.ScoredChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *MockVectorStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Helper methods for testing

func (m *MockVectorStore) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}
