package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
)

const (
	userAgent          = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultHTTPTimeout = 15 * time.Second
	defaultMaxResults  = 10
	maxRateRetries     = 2
	initialBackoff     = time.Second
)

// config holds the settings shared by every provider
type config struct {
	endpoint   string
	client     *http.Client
	limiter    *rate.Limiter
	backoff    time.Duration
	maxResults int
}

// Option configures a provider
type Option func(*config)

// WithEndpoint overrides the provider URL (used by tests and proxies)
func WithEndpoint(endpoint string) Option {
	return func(c *config) { c.endpoint = endpoint }
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.client = client }
}

// WithRateLimit allows perSecond requests with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *config) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithBackoff sets the initial wait after a 429 response
func WithBackoff(d time.Duration) Option {
	return func(c *config) { c.backoff = d }
}

// WithMaxResults caps the results returned per search
func WithMaxResults(n int) Option {
	return func(c *config) { c.maxResults = n }
}

func newConfig(endpoint string, perSecond float64, opts []Option) *config {
	c := &config{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
		backoff:    initialBackoff,
		maxResults: defaultMaxResults,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do waits for the rate limiter, sends the request built by newReq and
// retries a bounded number of times on 429, doubling the wait each time.
// The caller closes the returned body.
func (c *config) do(ctx context.Context, provider string, newReq func(context.Context) (*http.Request, error)) (*http.Response, error) {
	delay := c.backoff
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: %s rate limit wait: %v", domain.ErrRetrieval, provider, err)
			}
		}

		req, err := newReq(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %s request failed: %v", domain.ErrRetrieval, provider, err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests && attempt < maxRateRetries:
			resp.Body.Close()
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s rate limited: %v", domain.ErrRetrieval, provider, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %s http %d: %s", domain.ErrRetrieval, provider, resp.StatusCode, body)
		}
	}
}

// limit truncates results to the smaller of k and the provider cap
func (c *config) limit(results []domain.WebResult, k int) []domain.WebResult {
	n := c.maxResults
	if k > 0 && k < n {
		n = k
	}
	if len(results) > n {
		results = results[:n]
	}
	return results
}
