package chromem

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// Ensure Store implements VectorStore
var _ driven.VectorStore = (*Store)(nil)

// DefaultCollection is the collection used when none is configured
const DefaultCollection = "agriculture"

// Config configures the chromem-backed store
type Config struct {
	// Path is the persistence directory; empty keeps the store in memory
	Path string

	// Collection is the collection name
	Collection string

	// Compress gzips persisted documents
	Compress bool
}

// Store implements VectorStore on an embedded chromem-go database.
// Similarity scores are cosine similarities in [-1, 1].
type Store struct {
	db          *chromem.DB
	collection  *chromem.Collection
	name        string
	concurrency int
}

// NewStore opens (or creates) the collection. embed computes the vectors
// for both documents and queries.
func NewStore(cfg Config, embed chromem.EmbeddingFunc) (*Store, error) {
	if embed == nil {
		return nil, fmt.Errorf("embedding function is required")
	}
	name := cfg.Collection
	if name == "" {
		name = DefaultCollection
	}

	var db *chromem.DB
	if cfg.Path != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem db at %s: %w", cfg.Path, err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(name, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create collection %s: %w", name, err)
	}

	return &Store{
		db:          db,
		collection:  collection,
		name:        name,
		concurrency: runtime.NumCPU(),
	}, nil
}

// NewEmbeddingFunc returns the embedding function for a provider.
// Ollama base URLs are given without the /api suffix, as for the generators.
func NewEmbeddingFunc(provider domain.AIProvider, model, baseURL, apiKey string) (chromem.EmbeddingFunc, error) {
	switch provider {
	case domain.AIProviderOllama, "":
		if baseURL != "" {
			baseURL = strings.TrimRight(baseURL, "/")
			if !strings.HasSuffix(baseURL, "/api") {
				baseURL += "/api"
			}
		}
		if model == "" {
			model = "nomic-embed-text"
		}
		return chromem.NewEmbeddingFuncOllama(model, baseURL), nil
	case domain.AIProviderOpenAI:
		if baseURL == "" {
			if apiKey == "" {
				return nil, fmt.Errorf("OpenAI API key is required for embeddings")
			}
			return chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI(model)), nil
		}
		return chromem.NewEmbeddingFuncOpenAICompat(baseURL, apiKey, model, nil), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, provider)
	}
}

// Search returns up to k chunks ordered by descending similarity.
// k is clamped to the collection size.
func (s *Store) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, fmt.Errorf("collection %s is empty: %w", s.name, domain.ErrNotFound)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := s.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", s.name, err)
	}

	chunks := make([]domain.ScoredChunk, len(results))
	for i, r := range results {
		chunks[i] = domain.ScoredChunk{
			ID:       r.ID,
			Text:     r.Content,
			Score:    float64(r.Similarity),
			Metadata: r.Metadata,
		}
	}
	return chunks, nil
}

// Add embeds and indexes chunks. Chunks without an ID get a random one.
func (s *Store) Add(ctx context.Context, chunks []domain.ScoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		id := c.ID
		if id == "" {
			id = domain.GenerateID()
		}
		docs = append(docs, chromem.Document{
			ID:       id,
			Content:  c.Text,
			Metadata: c.Metadata,
		})
	}
	if len(docs) == 0 {
		return nil
	}

	if err := s.collection.AddDocuments(ctx, docs, s.concurrency); err != nil {
		return fmt.Errorf("failed to add documents to collection %s: %w", s.name, err)
	}
	return nil
}

// Count returns the number of indexed chunks
func (s *Store) Count() int {
	return s.collection.Count()
}
