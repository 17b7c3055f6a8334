// Package loopdetect implements the turn engine's repetition guard (C7,
// spec §4.5): a bounded per-agent history of recent tool calls used to
// detect a run stuck retrying the same failing call, so the orchestrator
// can synthesize a controller turn breaking the loop instead of burning
// through MaxTurns.
package loopdetect

import (
	"sync"
	"time"

	"github.com/loopforge/agentturn/agent/canon"
)

// Record is one observed tool call outcome, kept in the per-agent ring.
type Record struct {
	Tool      string
	Hash      string
	Success   bool
	Timestamp time.Time
}

// agentHistory is a bounded FIFO ring of recent Records for one agent.
type agentHistory struct {
	records    []Record
	lastAccess time.Time
}

// Detector tracks recent tool-call history per agent and flags repeated
// consecutive failures of the same (tool, params) pair.
type Detector struct {
	mu sync.Mutex
	// MaxAgentHistory bounds how many records are retained per agent;
	// oldest records are evicted first once the ring is full.
	MaxAgentHistory int
	// AgentTTL evicts an agent's entire history once it has not been
	// touched for this long, bounding memory for abandoned runs.
	AgentTTL time.Duration
	// ConsecutiveFailureThreshold is how many consecutive failures of the
	// same (tool, params) pair trigger DetectRepeatedFailures.
	ConsecutiveFailureThreshold int

	histories map[string]*agentHistory
}

// New constructs a Detector with the given bounds.
func New(maxAgentHistory int, agentTTL time.Duration, consecutiveFailureThreshold int) *Detector {
	return &Detector{
		MaxAgentHistory:             maxAgentHistory,
		AgentTTL:                    agentTTL,
		ConsecutiveFailureThreshold: consecutiveFailureThreshold,
		histories:                   map[string]*agentHistory{},
	}
}

// RecordToolCall appends an observed outcome to agentID's history,
// evicting the oldest record if the ring is at capacity, and opportunistically
// evicting any agent whose history has gone stale past AgentTTL.
func (d *Detector) RecordToolCall(agentID, toolName string, params map[string]any, success bool) {
	key := canon.Hash(toolName, params)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.evictStaleLocked(now)

	h, ok := d.histories[agentID]
	if !ok {
		h = &agentHistory{}
		d.histories[agentID] = h
	}
	h.lastAccess = now
	h.records = append(h.records, Record{Tool: toolName, Hash: key, Success: success, Timestamp: now})
	if d.MaxAgentHistory > 0 && len(h.records) > d.MaxAgentHistory {
		h.records = h.records[len(h.records)-d.MaxAgentHistory:]
	}
}

// DetectRepeatedFailures reports whether the most recent calls to
// (toolName, params) for agentID have failed ConsecutiveFailureThreshold or
// more times in a row. The scan walks the ring from most recent to oldest,
// counting consecutive failures for the same (tool, hash) pair, tolerating
// interleaved calls to other tools, and stops counting as soon as it sees
// either a success for that same pair or any success for toolName overall
// (spec §4.5: a single success resets the streak).
func (d *Detector) DetectRepeatedFailures(agentID, toolName string, params map[string]any) bool {
	key := canon.Hash(toolName, params)

	d.mu.Lock()
	defer d.mu.Unlock()

	h, ok := d.histories[agentID]
	if !ok {
		return false
	}

	consecutive := 0
	for i := len(h.records) - 1; i >= 0; i-- {
		r := h.records[i]
		if r.Tool != toolName {
			continue
		}
		if r.Success {
			return false
		}
		if r.Hash != key {
			// A failure of a different param set for the same tool does not
			// extend or break the streak; keep scanning past it.
			continue
		}
		consecutive++
		if consecutive >= d.ConsecutiveFailureThreshold {
			return true
		}
	}
	return false
}

// Reset clears agentID's history. The orchestrator never calls it; history
// otherwise ages out through AgentTTL eviction.
func (d *Detector) Reset(agentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.histories, agentID)
}

func (d *Detector) evictStaleLocked(now time.Time) {
	if d.AgentTTL <= 0 {
		return
	}
	for id, h := range d.histories {
		if now.Sub(h.lastAccess) > d.AgentTTL {
			delete(d.histories, id)
		}
	}
}
