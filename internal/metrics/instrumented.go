package metrics

import (
	"context"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

var (
	_ driven.TextGenerator  = (*InstrumentedGenerator)(nil)
	_ driven.Retriever      = (*InstrumentedRetriever)(nil)
	_ driven.RetrievalCache = (*InstrumentedCache)(nil)
)

// InstrumentedGenerator records every Generate call
type InstrumentedGenerator struct {
	driven.TextGenerator
	collector *Collector
}

// InstrumentGenerator wraps gen. A nil generator stays nil.
func InstrumentGenerator(gen driven.TextGenerator, c *Collector) driven.TextGenerator {
	if gen == nil || c == nil {
		return gen
	}
	return &InstrumentedGenerator{TextGenerator: gen, collector: c}
}

// Generate delegates and records the call under the effective model
func (g *InstrumentedGenerator) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = g.TextGenerator.Model()
	}
	start := time.Now()
	out, err := g.TextGenerator.Generate(ctx, prompt, opts)
	g.collector.RecordLLMRequest(model, time.Since(start), err)
	return out, err
}

// InstrumentedRetriever records every Retrieve call under its source kind
type InstrumentedRetriever struct {
	next      driven.Retriever
	collector *Collector
}

// InstrumentRetriever wraps r
func InstrumentRetriever(r driven.Retriever, c *Collector) driven.Retriever {
	if r == nil || c == nil {
		return r
	}
	return &InstrumentedRetriever{next: r, collector: c}
}

// Kind returns the wrapped retriever's kind
func (r *InstrumentedRetriever) Kind() domain.SourceKind {
	return r.next.Kind()
}

// Retrieve delegates and records the call
func (r *InstrumentedRetriever) Retrieve(ctx context.Context, subQuery string, k int) ([]domain.EvidenceItem, error) {
	start := time.Now()
	items, err := r.next.Retrieve(ctx, subQuery, k)
	r.collector.RecordRetrieval(string(r.next.Kind()), len(items), time.Since(start), err)
	return items, err
}

// InstrumentedCache counts hits and misses of a retrieval cache
type InstrumentedCache struct {
	next      driven.RetrievalCache
	collector *Collector
	cacheType string
}

// InstrumentCache wraps cache; cacheType labels the counters
func InstrumentCache(cache driven.RetrievalCache, c *Collector, cacheType string) driven.RetrievalCache {
	if cache == nil || c == nil {
		return cache
	}
	return &InstrumentedCache{next: cache, collector: c, cacheType: cacheType}
}

// Get delegates and counts the outcome. Backend errors count as misses.
func (c *InstrumentedCache) Get(ctx context.Context, key string) ([]domain.EvidenceItem, error) {
	items, err := c.next.Get(ctx, key)
	if err == nil {
		c.collector.RecordCacheHit(c.cacheType)
	} else {
		c.collector.RecordCacheMiss(c.cacheType)
	}
	return items, err
}

// Set delegates
func (c *InstrumentedCache) Set(ctx context.Context, key string, items []domain.EvidenceItem, ttl time.Duration) error {
	return c.next.Set(ctx, key, items, ttl)
}
