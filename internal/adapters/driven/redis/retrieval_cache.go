package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/agrisearch-core/internal/core/domain"
	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RetrievalCache = (*RetrievalCache)(nil)

const retrievalPrefix = "agrisearch:retrieval:"

// RetrievalCache stores retrieval results as JSON with a TTL.
// Citation indices are request-scoped and are cleared before storing.
type RetrievalCache struct {
	client *redis.Client
}

// NewRetrievalCache creates a new Redis-backed RetrievalCache
func NewRetrievalCache(client *redis.Client) *RetrievalCache {
	return &RetrievalCache{client: client}
}

// Get returns domain.ErrNotFound on a miss
func (c *RetrievalCache) Get(ctx context.Context, key string) ([]domain.EvidenceItem, error) {
	data, err := c.client.Get(ctx, retrievalPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached retrieval: %w", err)
	}

	var items []domain.EvidenceItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached retrieval: %w", err)
	}
	return items, nil
}

// Set stores items under key for ttl. A non-positive ttl is a no-op.
func (c *RetrievalCache) Set(ctx context.Context, key string, items []domain.EvidenceItem, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	stored := make([]domain.EvidenceItem, len(items))
	for i, item := range items {
		item.CitationIndex = 0
		stored[i] = item
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal retrieval: %w", err)
	}
	if err := c.client.Set(ctx, retrievalPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache retrieval: %w", err)
	}
	return nil
}

// Ping checks if the Redis backend is healthy
func (c *RetrievalCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
