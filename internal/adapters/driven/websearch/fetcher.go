package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// Ensure PageFetcher implements driven.PageFetcher
var _ driven.PageFetcher = (*PageFetcher)(nil)

const (
	defaultFetchTimeout  = 10 * time.Second
	defaultMaxFetchBytes = 1 << 20
)

// PageFetcher downloads a page and converts it to plain text with the
// normaliser registered for its content type.
type PageFetcher struct {
	client   *http.Client
	registry driven.NormaliserRegistry
	maxBytes int64
}

// NewPageFetcher creates a page fetcher
func NewPageFetcher(registry driven.NormaliserRegistry, client *http.Client) *PageFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &PageFetcher{
		client:   client,
		registry: registry,
		maxBytes: defaultMaxFetchBytes,
	}
}

// Fetch returns the page text. Non-text responses are rejected.
func (f *PageFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return "", fmt.Errorf("%w: empty url", domain.ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %v", domain.ErrRetrieval, pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: fetch %s: http %d", domain.ErrRetrieval, pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", domain.ErrRetrieval, pageURL, err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(body)
	}
	if !isTextual(mimeType) {
		return "", fmt.Errorf("%w: fetch %s: unsupported content type %s", domain.ErrRetrieval, pageURL, mimeType)
	}

	normaliser := f.registry.Get(mimeType)
	if normaliser == nil {
		return strings.TrimSpace(string(body)), nil
	}
	return normaliser.Normalise(string(body), mimeType), nil
}

func isTextual(mimeType string) bool {
	mimeType = strings.ToLower(mimeType)
	return strings.HasPrefix(mimeType, "text/") || strings.Contains(mimeType, "html") || strings.Contains(mimeType, "xml")
}
