package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// Ensure Tavily implements WebSearchProvider
var _ driven.WebSearchProvider = (*Tavily)(nil)

const tavilySearchURL = "https://api.tavily.com/search"

// Tavily calls the Tavily search API
type Tavily struct {
	apiKey string
	depth  string
	cfg    *config
}

type tavilyRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title      string  `json:"title"`
		URL        string  `json:"url"`
		Content    string  `json:"content"`
		RawContent string  `json:"raw_content"`
		Score      float64 `json:"score"`
	} `json:"results"`
}

// NewTavily creates a Tavily provider. depth is "basic" or "advanced".
func NewTavily(apiKey, depth string, opts ...Option) (*Tavily, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("tavily API key is required")
	}
	if depth == "" {
		depth = "basic"
	}
	return &Tavily{
		apiKey: apiKey,
		depth:  depth,
		cfg:    newConfig(tavilySearchURL, 5, opts),
	}, nil
}

// Name returns the provider name
func (t *Tavily) Name() string {
	return string(domain.WebSearchTavily)
}

// Search returns up to k results
func (t *Tavily) Search(ctx context.Context, query string, k int) ([]domain.WebResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = t.cfg.maxResults
	}

	payload, err := json.Marshal(tavilyRequest{
		Query:       query,
		SearchDepth: t.depth,
		MaxResults:  k,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := t.cfg.do(ctx, t.Name(), func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: tavily decode: %v", domain.ErrRetrieval, err)
	}

	results := make([]domain.WebResult, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, domain.WebResult{
			Title:   strings.TrimSpace(r.Title),
			URL:     r.URL,
			Snippet: strings.TrimSpace(r.Content),
			Content: strings.TrimSpace(r.RawContent),
		})
	}
	return t.cfg.limit(results, k), nil
}
