package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "catalog:version"

// Cache keeps recent product-search results in Redis. Keys embed a version
// counter that is bumped whenever a product is created, so stale candidate
// lists disappear without key scans. A nil cache degrades to direct loads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// SearchKey composes the cache key for a folded query with the current version.
func (c *Cache) SearchKey(ctx context.Context, foldedQuery string) (string, error) {
	if c == nil || c.client == nil {
		return "catalog:search:" + foldedQuery, nil
	}
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("catalog:search:%s:%d", foldedQuery, ver), nil
}

// GetCandidates loads a cached candidate list. The bool reports a hit.
func (c *Cache) GetCandidates(ctx context.Context, key string) ([]Candidate, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var candidates []Candidate
	if err := json.Unmarshal(payload, &candidates); err != nil {
		return nil, false, err
	}
	return candidates, true, nil
}

// SetCandidates stores a candidate list under key.
func (c *Cache) SetCandidates(ctx context.Context, key string, candidates []Candidate) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(candidates)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

// Bump invalidates all cached searches after a catalog write.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
