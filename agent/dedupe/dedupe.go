// Package dedupe implements the turn engine's result cache and deduplicator
// (C6, spec §4.4): before invoking a tool the orchestrator asks the Deduper
// whether an equivalent, still-fresh, successful call already happened in
// this run, keyed by the canonical (tool, params) hash from package canon.
package dedupe

import (
	"context"
	"time"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/canon"
	"github.com/loopforge/agentturn/agent/tool"
)

// Cache is an optional external backend (e.g. Redis) a Deduper consults
// after scanning the in-run turn log, letting cached successes be reused
// across separate runs/processes. A Deduper with a nil Cache only
// deduplicates within a single run's turn log.
type Cache interface {
	// Get returns the cached result for key, or ok=false if absent or
	// expired. Backends are responsible for their own TTL expiry.
	Get(ctx context.Context, key string) (result *agent.ToolExecutionResult, ok bool, err error)
	// Set stores result under key with the given TTL.
	Set(ctx context.Context, key string, result *agent.ToolExecutionResult, ttl time.Duration) error
}

// Deduper looks up whether a tool call can be satisfied from a prior
// result instead of re-invoking the tool.
type Deduper struct {
	// Cache is consulted when the turn log has no fresh match. Optional.
	Cache Cache
	// DefaultTTL is the staleness window applied when the tool does not
	// declare a tool.CustomTTLer override (spec §4.4 step 2).
	DefaultTTL time.Duration
}

// New constructs a Deduper with the given default staleness window. cache
// may be nil to restrict dedupe lookups to the in-run turn log.
func New(cache Cache, defaultTTL time.Duration) *Deduper {
	return &Deduper{Cache: cache, DefaultTTL: defaultTTL}
}

// Lookup returns a reusable result for toolName/params if one exists and is
// still fresh, honoring desc's AllowDedupe/CustomTTL capabilities. Lookup
// never returns a cached failure (spec §4.4 step 5): only Success results
// are eligible for reuse.
func (d *Deduper) Lookup(ctx context.Context, state *agent.AgentState, desc tool.Descriptor, toolName string, params map[string]any) (*agent.ToolExecutionResult, bool) {
	if desc != nil && !tool.AllowDedupe(desc) {
		return nil, false
	}

	ttl := d.DefaultTTL
	if desc != nil {
		if customNanos, ok := tool.CustomTTL(desc); ok {
			ttl = time.Duration(customNanos)
		}
	}

	key := canon.Hash(toolName, params)

	if result, ok := scanTurnLog(state, key, ttl); ok {
		return result, true
	}

	if d.Cache != nil {
		if result, ok, err := d.Cache.Get(ctx, key); err == nil && ok {
			return result, true
		}
	}
	return nil, false
}

// Remember records a fresh successful result in the external cache, if
// configured. Failures are never stored (callers should not call Remember
// for a failed ToolExecutionResult).
func (d *Deduper) Remember(ctx context.Context, toolName string, params map[string]any, result *agent.ToolExecutionResult, ttlOverride time.Duration) error {
	if d.Cache == nil || result == nil || !result.Success {
		return nil
	}
	ttl := d.DefaultTTL
	if ttlOverride > 0 {
		ttl = ttlOverride
	}
	key := canon.Hash(toolName, params)
	return d.Cache.Set(ctx, key, result, ttl)
}

// scanTurnLog walks state.Turns from most recent to oldest, looking for a
// successful ToolExecutionResult whose TurnID matches key and whose age is
// within ttl. Each call is considered independently — a turn with multiple
// ToolResults (parallel calls) never merges their outcomes (spec §4.4 step
// 4: per-call, not per-turn, freshness).
func scanTurnLog(state *agent.AgentState, key string, ttl time.Duration) (*agent.ToolExecutionResult, bool) {
	if state == nil {
		return nil, false
	}
	now := time.Now().UnixNano()
	for i := len(state.Turns) - 1; i >= 0; i-- {
		turn := state.Turns[i]
		if turn == nil {
			continue
		}
		if r := matchResult(turn.ToolResult, key, now, ttl); r != nil {
			return r, true
		}
		for _, r := range turn.ToolResults {
			if m := matchResult(r, key, now, ttl); m != nil {
				return m, true
			}
		}
	}
	return nil, false
}

func matchResult(r *agent.ToolExecutionResult, key string, nowNanos int64, ttl time.Duration) *agent.ToolExecutionResult {
	if r == nil || !r.Success || r.TurnID != key {
		return nil
	}
	if ttl <= 0 {
		return r
	}
	age := time.Duration(nowNanos - r.CreatedAtUnix)
	if age < 0 || age > ttl {
		return nil
	}
	return r
}
