package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

// MockWebSearchProvider is a mock implementation of WebSearchProvider for testing
type MockWebSearchProvider struct {
	mu      sync.Mutex
	results map[string][]domain.WebResult
	all     []domain.WebResult
	failAll bool
	queries []string
}

// NewMockWebSearchProvider creates a new MockWebSearchProvider
func NewMockWebSearchProvider() *MockWebSearchProvider {
	return &MockWebSearchProvider{
		results: make(map[string][]domain.WebResult),
	}
}

func (m *MockWebSearchProvider) Search(ctx context.Context, query string, k int) ([]domain.WebResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries = append(m.queries, query)
	if m.failAll {
		return nil, fmt.Errorf("%w: mock search rate limited", domain.ErrRetrieval)
	}

	results, ok := m.results[query]
	if !ok {
		results = m.all
	}
	results = append([]domain.WebResult(nil), results...)
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *MockWebSearchProvider) Name() string {
	return "mock"
}

// Helper methods for testing

// SetResults sets results for an exact query string
func (m *MockWebSearchProvider) SetResults(query string, results []domain.WebResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[query] = results
}

// SetDefaultResults sets results for every query without an exact match
func (m *MockWebSearchProvider) SetDefaultResults(results []domain.WebResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.all = results
}

func (m *MockWebSearchProvider) SetFailAll(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = fail
}

// Queries returns the queries searched so far
func (m *MockWebSearchProvider) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// MockPageFetcher is a mock implementation of PageFetcher for testing
type MockPageFetcher struct {
	mu    sync.Mutex
	pages map[string]string
}

// NewMockPageFetcher creates a new MockPageFetcher
func NewMockPageFetcher() *MockPageFetcher {
	return &MockPageFetcher{pages: make(map[string]string)}
}

func (m *MockPageFetcher) Fetch(ctx context.Context, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page, ok := m.pages[url]
	if !ok {
		return "", fmt.Errorf("fetch http 404: %s", url)
	}
	return page, nil
}

// SetPage registers page text for url
func (m *MockPageFetcher) SetPage(url, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[url] = text
}
