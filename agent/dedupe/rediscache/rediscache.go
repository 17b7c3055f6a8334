// Package rediscache is a Redis-backed dedupe.Cache, letting successful tool
// results be reused across separate orchestrator processes and runs, not
// just within one run's in-memory turn log.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loopforge/agentturn/agent"
)

// Cache stores dedupe entries as JSON strings under a key prefix, relying on
// Redis's own TTL expiry (SET ... EX) rather than tracking freshness
// client-side.
type Cache struct {
	Client *redis.Client
	Prefix string
}

// New constructs a Cache using client. prefix namespaces keys (e.g.
// "agentturn:dedupe:") so the cache can share a Redis instance with other
// consumers. An empty prefix is used as-is.
func New(client *redis.Client, prefix string) *Cache {
	return &Cache{Client: client, Prefix: prefix}
}

func (c *Cache) key(k string) string {
	return c.Prefix + k
}

// Get implements dedupe.Cache.
func (c *Cache) Get(ctx context.Context, key string) (*agent.ToolExecutionResult, bool, error) {
	raw, err := c.Client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("rediscache: get: %w", err)
	}
	var result agent.ToolExecutionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("rediscache: decode: %w", err)
	}
	return &result, true, nil
}

// Set implements dedupe.Cache. ttl <= 0 stores the entry without expiry.
func (c *Cache) Set(ctx context.Context, key string, result *agent.ToolExecutionResult, ttl time.Duration) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("rediscache: encode: %w", err)
	}
	if ttl <= 0 {
		ttl = 0
	}
	if err := c.Client.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("rediscache: set: %w", err)
	}
	return nil
}
