package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

const (
	// DefaultMaxContentChars bounds web content placed into evidence
	DefaultMaxContentChars = 2000

	agricultureQuerySuffix = " agriculture farming"
	agricultureDomainBoost = 2.0
	pageFetchConcurrency   = 3
)

// agricultureDomains are hosts whose results get a relevance boost
var agricultureDomains = []string{
	"fao.org",
	"usda.gov",
	"extension.org",
	"cgiar.org",
	"icrisat.org",
	"cimmyt.org",
	"irri.org",
	"agric.gov",
	"croplife.org",
	"agprofessional.com",
	"agriculture.com",
}

// Ensure retrievers implement Retriever
var (
	_ driven.Retriever = (*VectorStoreRetriever)(nil)
	_ driven.Retriever = (*WebSearchRetriever)(nil)
	_ driven.Retriever = (*CachedRetriever)(nil)
)

// VectorStoreRetriever turns vector store hits into database evidence
type VectorStoreRetriever struct {
	store driven.VectorStore
}

// NewVectorStoreRetriever creates a VectorStoreRetriever. A nil store
// produces a retriever that always fails.
func NewVectorStoreRetriever(store driven.VectorStore) *VectorStoreRetriever {
	return &VectorStoreRetriever{store: store}
}

// Kind returns SourceKindDatabase
func (r *VectorStoreRetriever) Kind() domain.SourceKind {
	return domain.SourceKindDatabase
}

// Retrieve searches the local store for subQuery
func (r *VectorStoreRetriever) Retrieve(ctx context.Context, subQuery string, k int) ([]domain.EvidenceItem, error) {
	if r.store == nil {
		return nil, domain.NewRetrievalError(r.Kind(), subQuery, errors.New("vector store unavailable"))
	}
	if r.store.Count() == 0 {
		return nil, domain.NewRetrievalError(r.Kind(), subQuery, errors.New("vector index not loaded"))
	}

	chunks, err := r.store.Search(ctx, subQuery, k)
	if err != nil {
		return nil, domain.NewRetrievalError(r.Kind(), subQuery, err)
	}

	items := make([]domain.EvidenceItem, 0, len(chunks))
	for _, c := range chunks {
		items = append(items, domain.EvidenceItem{
			SourceKind:     domain.SourceKindDatabase,
			OriginSubQuery: subQuery,
			Content:        c.Text,
			Title:          c.Metadata["title"],
			URL:            c.Metadata["url"],
			Score:          c.Score,
			Metadata:       c.Metadata,
		})
	}
	return items, nil
}

// WebSearchRetriever turns web search hits into web evidence
type WebSearchRetriever struct {
	provider driven.WebSearchProvider
	fetcher  driven.PageFetcher
	pipeline driven.PostProcessorPipeline
	maxChars int
	logger   *slog.Logger
}

// WebSearchRetrieverOption configures a WebSearchRetriever
type WebSearchRetrieverOption func(*WebSearchRetriever)

// WithPageFetcher enables downloading result pages for full content
func WithPageFetcher(fetcher driven.PageFetcher) WebSearchRetrieverOption {
	return func(r *WebSearchRetriever) { r.fetcher = fetcher }
}

// WithContentPipeline sets the pipeline that cleans page content
func WithContentPipeline(pipeline driven.PostProcessorPipeline) WebSearchRetrieverOption {
	return func(r *WebSearchRetriever) { r.pipeline = pipeline }
}

// WithMaxContentChars sets the content clip length
func WithMaxContentChars(n int) WebSearchRetrieverOption {
	return func(r *WebSearchRetriever) {
		if n > 0 {
			r.maxChars = n
		}
	}
}

// WithRetrieverLogger sets the logger
func WithRetrieverLogger(logger *slog.Logger) WebSearchRetrieverOption {
	return func(r *WebSearchRetriever) { r.logger = logger }
}

// NewWebSearchRetriever creates a WebSearchRetriever
func NewWebSearchRetriever(provider driven.WebSearchProvider, opts ...WebSearchRetrieverOption) *WebSearchRetriever {
	r := &WebSearchRetriever{
		provider: provider,
		maxChars: DefaultMaxContentChars,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Kind returns SourceKindWeb
func (r *WebSearchRetriever) Kind() domain.SourceKind {
	return domain.SourceKindWeb
}

// Retrieve searches the web for subQuery with an agricultural focus
func (r *WebSearchRetriever) Retrieve(ctx context.Context, subQuery string, k int) ([]domain.EvidenceItem, error) {
	if r.provider == nil {
		return nil, domain.NewRetrievalError(r.Kind(), subQuery, errors.New("web search unavailable"))
	}

	results, err := r.provider.Search(ctx, AgricultureFocus(subQuery), k)
	if err != nil {
		return nil, domain.NewRetrievalError(r.Kind(), subQuery, err)
	}
	if k > 0 && len(results) > k {
		results = results[:k]
	}

	contents := r.fetchContents(ctx, results)

	items := make([]domain.EvidenceItem, 0, len(results))
	for rank, res := range results {
		content := r.clean(contents[rank])
		if content == "" {
			content = r.clean(res.Snippet)
		}
		if content == "" {
			content = res.Title
		}
		if content == "" {
			continue
		}
		items = append(items, domain.EvidenceItem{
			SourceKind:     domain.SourceKindWeb,
			OriginSubQuery: subQuery,
			Content:        content,
			Title:          res.Title,
			URL:            res.URL,
			Score:          WebScore(rank, res.Domain()),
			Metadata: map[string]string{
				"domain":   res.Domain(),
				"provider": r.provider.Name(),
			},
		})
	}
	return items, nil
}

// fetchContents returns page text per result, falling back to the
// provider's content or an empty string when fetching fails.
func (r *WebSearchRetriever) fetchContents(ctx context.Context, results []domain.WebResult) []string {
	contents := make([]string, len(results))
	for i, res := range results {
		contents[i] = res.Content
	}
	if r.fetcher == nil {
		return contents
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pageFetchConcurrency)
	for i, res := range results {
		if contents[i] != "" || res.URL == "" {
			continue
		}
		g.Go(func() error {
			text, err := r.fetcher.Fetch(gctx, res.URL)
			if err != nil {
				r.logger.Debug("page fetch failed, using snippet", "url", res.URL, "error", err)
				return nil
			}
			contents[i] = text
			return nil
		})
	}
	_ = g.Wait()
	return contents
}

// clean normalises whitespace and clips content to the configured bound
func (r *WebSearchRetriever) clean(content string) string {
	if content == "" {
		return ""
	}
	if r.pipeline != nil {
		chunks := r.pipeline.Process(content)
		if len(chunks) == 0 {
			return ""
		}
		content = chunks[0].Content
	}
	return ClipText(domain.NormalizeWhitespace(content), r.maxChars)
}

// CachedRetriever serves repeated sub-queries from a RetrievalCache.
// Cache failures are logged and fall through to the wrapped retriever.
type CachedRetriever struct {
	next   driven.Retriever
	cache  driven.RetrievalCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRetriever wraps next with cache
func NewCachedRetriever(next driven.Retriever, cache driven.RetrievalCache, ttl time.Duration, logger *slog.Logger) *CachedRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRetriever{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Kind returns the wrapped retriever's kind
func (r *CachedRetriever) Kind() domain.SourceKind {
	return r.next.Kind()
}

// Retrieve returns cached items for subQuery or retrieves and caches them
func (r *CachedRetriever) Retrieve(ctx context.Context, subQuery string, k int) ([]domain.EvidenceItem, error) {
	key := RetrievalCacheKey(r.next.Kind(), subQuery, k)

	items, err := r.cache.Get(ctx, key)
	if err == nil {
		for i := range items {
			items[i].OriginSubQuery = subQuery
		}
		return items, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		r.logger.Warn("retrieval cache read failed", "key", key, "error", err)
	}

	items, err = r.next.Retrieve(ctx, subQuery, k)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := r.cache.Set(ctx, key, items, r.ttl); err != nil {
			r.logger.Warn("retrieval cache write failed", "key", key, "error", err)
		}
	}
	return items, nil
}

// RetrievalCacheKey builds the cache key for one retrieval call
func RetrievalCacheKey(kind domain.SourceKind, subQuery string, k int) string {
	return fmt.Sprintf("%s:%d:%s", kind, k, strings.ToLower(domain.NormalizeWhitespace(subQuery)))
}

// AgricultureFocus appends the agricultural suffix unless the query
// already mentions agriculture or farming.
func AgricultureFocus(query string) string {
	lower := strings.ToLower(query)
	if strings.Contains(lower, "agricultur") || strings.Contains(lower, "farm") {
		return query
	}
	return strings.TrimSpace(query) + agricultureQuerySuffix
}

// WebScore derives a relevance score from the result rank, boosted for
// known agricultural domains.
func WebScore(rank int, host string) float64 {
	score := 1.0 / float64(rank+1)
	if IsAgricultureDomain(host) {
		score *= agricultureDomainBoost
	}
	return score
}

// IsAgricultureDomain reports whether host belongs to a known agricultural site
func IsAgricultureDomain(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for _, d := range agricultureDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// ClipText truncates s to at most n characters without splitting a rune
func ClipText(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
