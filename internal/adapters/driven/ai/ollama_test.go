package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

func TestNewOllamaGenerator_Defaults(t *testing.T) {
	gen, err := NewOllamaGenerator("", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.baseURL != defaultOllamaURL {
		t.Errorf("expected base URL %s, got %s", defaultOllamaURL, gen.baseURL)
	}
	if gen.Model() != defaultOllamaModel {
		t.Errorf("expected model %s, got %s", defaultOllamaModel, gen.Model())
	}
	if gen.timeout != defaultLLMTimeout {
		t.Errorf("expected timeout %v, got %v", defaultLLMTimeout, gen.timeout)
	}
}

func TestOllamaGenerator_Generate(t *testing.T) {
	var got ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:    got.Model,
			Response: "Apply nitrogen in split doses [1].",
			Done:     true,
		})
	}))
	defer server.Close()

	gen, _ := NewOllamaGenerator(server.URL+"/", "gemma3:27b", time.Second)
	defer gen.Close()

	out, err := gen.Generate(context.Background(), "How to fertilize rice?", driven.GenerateOptions{
		Model:       "gemma3:4b",
		System:      "You are an agronomist.",
		Temperature: 0.1,
		NumCtx:      8192,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Apply nitrogen in split doses [1]." {
		t.Errorf("unexpected response %q", out)
	}
	if got.Model != "gemma3:4b" {
		t.Errorf("expected model override, got %s", got.Model)
	}
	if got.Stream {
		t.Error("expected stream=false")
	}
	if got.System != "You are an agronomist." {
		t.Errorf("expected system prompt to be sent, got %q", got.System)
	}
	if got.Options["num_ctx"] != float64(8192) {
		t.Errorf("expected num_ctx 8192, got %v", got.Options["num_ctx"])
	}
	if got.Options["num_predict"] != float64(256) {
		t.Errorf("expected num_predict 256, got %v", got.Options["num_predict"])
	}
	if got.Options["temperature"] != 0.1 {
		t.Errorf("expected temperature 0.1, got %v", got.Options["temperature"])
	}
}

func TestOllamaGenerator_Generate_DefaultModel(t *testing.T) {
	var got ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "ok", Done: true})
	}))
	defer server.Close()

	gen, _ := NewOllamaGenerator(server.URL, "gemma3:27b", time.Second)

	if _, err := gen.Generate(context.Background(), "q", driven.GenerateOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Model != "gemma3:27b" {
		t.Errorf("expected default model, got %s", got.Model)
	}
	if _, ok := got.Options["num_ctx"]; ok {
		t.Error("expected num_ctx to be omitted when zero")
	}
}

func TestOllamaGenerator_Generate_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	gen, _ := NewOllamaGenerator(server.URL, "missing", time.Second)

	_, err := gen.Generate(context.Background(), "q", driven.GenerateOptions{})
	if !errors.Is(err, domain.ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}
}

func TestOllamaGenerator_Generate_ErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Error: "out of memory"})
	}))
	defer server.Close()

	gen, _ := NewOllamaGenerator(server.URL, "big", time.Second)

	_, err := gen.Generate(context.Background(), "q", driven.GenerateOptions{})
	if !errors.Is(err, domain.ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}
}

func TestOllamaGenerator_Generate_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	gen, _ := NewOllamaGenerator(server.URL, "slow", time.Minute)

	start := time.Now()
	_, err := gen.Generate(context.Background(), "q", driven.GenerateOptions{Timeout: 50 * time.Millisecond})
	if !errors.Is(err, domain.ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("expected per-call timeout to bound the request")
	}
}

func TestOllamaGenerator_ListModelsAndPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"gemma3:27b"},{"name":"gemma3:4b"}]}`))
	}))
	defer server.Close()

	gen, _ := NewOllamaGenerator(server.URL, "", 0)

	models, err := gen.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 2 || models[0] != "gemma3:27b" || models[1] != "gemma3:4b" {
		t.Errorf("unexpected models %v", models)
	}
	if err := gen.Ping(context.Background()); err != nil {
		t.Errorf("expected ping to succeed, got %v", err)
	}
}

func TestOllamaGenerator_Ping_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	gen, _ := NewOllamaGenerator(url, "", 0)

	err := gen.Ping(context.Background())
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
}
