package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

func TestNewTavily_RequiresKey(t *testing.T) {
	if _, err := NewTavily("", ""); err == nil {
		t.Error("expected error without API key")
	}
}

func TestTavily_Search(t *testing.T) {
	var got tavilyRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"results":[
			{"title":"Wheat rust","url":"https://cimmyt.org/rust","content":"Rust spreads fast.","raw_content":"Full article"},
			{"title":"No URL","url":"","content":"skipped"},
			{"title":"Rust guide","url":"https://usda.gov/rust","content":"Guide."}
		]}`))
	}))
	defer server.Close()

	tv, err := NewTavily("tvly-key", "advanced", WithEndpoint(server.URL), WithRateLimit(0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := tv.Search(context.Background(), "wheat rust", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth != "Bearer tvly-key" {
		t.Errorf("unexpected auth header %q", auth)
	}
	if got.Query != "wheat rust" || got.SearchDepth != "advanced" || got.MaxResults != 3 {
		t.Errorf("unexpected request %+v", got)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Content != "Full article" || results[0].Snippet != "Rust spreads fast." {
		t.Errorf("unexpected first result %+v", results[0])
	}
	if tv.Name() != "tavily" {
		t.Errorf("unexpected name %s", tv.Name())
	}
}

func TestTavily_Search_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	tv, _ := NewTavily("bad", "", WithEndpoint(server.URL), WithRateLimit(0, 0))

	_, err := tv.Search(context.Background(), "q", 3)
	if !errors.Is(err, domain.ErrRetrieval) {
		t.Errorf("expected ErrRetrieval, got %v", err)
	}
}

func TestTavily_Search_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	tv, _ := NewTavily("key", "", WithEndpoint(server.URL), WithRateLimit(0, 0))

	if _, err := tv.Search(context.Background(), "q", 3); !errors.Is(err, domain.ErrRetrieval) {
		t.Errorf("expected ErrRetrieval, got %v", err)
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(domain.WebSearchDuckDuckGo, "", 1)
	if err != nil || p == nil || p.Name() != "duckduckgo" {
		t.Errorf("expected duckduckgo provider, got %v %v", p, err)
	}

	p, err = NewProvider(domain.WebSearchTavily, "key", 0)
	if err != nil || p == nil || p.Name() != "tavily" {
		t.Errorf("expected tavily provider, got %v %v", p, err)
	}

	if _, err := NewProvider(domain.WebSearchTavily, "", 0); err == nil {
		t.Error("expected error for tavily without key")
	}

	p, err = NewProvider(domain.WebSearchNone, "", 0)
	if err != nil || p != nil {
		t.Errorf("expected nil provider when disabled, got %v %v", p, err)
	}

	if _, err := NewProvider("bing", "", 0); !errors.Is(err, domain.ErrInvalidProvider) {
		t.Errorf("expected ErrInvalidProvider, got %v", err)
	}
}
