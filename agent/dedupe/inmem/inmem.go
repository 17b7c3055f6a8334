// Package inmem is a process-local dedupe.Cache, useful for tests and for
// single-process deployments that want cross-run (but not cross-process)
// result reuse.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/loopforge/agentturn/agent"
)

type entry struct {
	result    *agent.ToolExecutionResult
	expiresAt time.Time
}

// Cache is a mutex-guarded map implementing dedupe.Cache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{entries: map[string]entry{}}
}

// Get implements dedupe.Cache.
func (c *Cache) Get(_ context.Context, key string) (*agent.ToolExecutionResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.result, true, nil
}

// Set implements dedupe.Cache.
func (c *Cache) Set(_ context.Context, key string, result *agent.ToolExecutionResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = entry{result: result, expiresAt: expiresAt}
	return nil
}
