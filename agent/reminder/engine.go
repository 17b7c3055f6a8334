package reminder

import (
	"sort"
	"sync"
)

// Engine manages run-scoped reminders: it tracks per-run reminder state and
// enforces per-run caps and turn-based rate limiting. Safe for concurrent
// use.
//
// Unlike a reminder engine that keeps its own turn counter, Snapshot is
// driven by the caller's actual turn index — the orchestrator passes the
// same turnIndex it threads through step/processToolCall, which in turn
// comes from len(AgentState.Turns), the turn engine's single source of
// truth (spec §3). This matters on resume: a run loaded from a store with
// N turns already recorded starts its rate limiting at turn N, not back at
// turn 0, so a MinTurnsBetween window set before a pause/resume cycle is
// honored across it.
//
// The Engine does not itself inject anything into a prompt; callers obtain
// the per-turn snapshot via Snapshot and pass it to InjectMessages.
type Engine struct {
	mu   sync.RWMutex
	runs map[string]*runState
}

type runState struct {
	reminders map[string]*reminderState
}

type reminderState struct {
	reminder Reminder
	emitted  int
	lastTurn int
}

// NewEngine constructs an empty Engine.
func NewEngine() *Engine {
	return &Engine{runs: make(map[string]*runState)}
}

// AddReminder registers or updates a reminder for runID. When a reminder
// with the same ID already exists, its configuration is replaced while
// preserving emission counters, so rate limiting continues to apply.
func (e *Engine) AddReminder(runID string, r Reminder) {
	if runID == "" || r.ID == "" || r.Text == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rs := e.ensureRunLocked(runID)
	if st, ok := rs.reminders[r.ID]; ok {
		st.reminder = r
		return
	}
	rs.reminders[r.ID] = &reminderState{reminder: r}
}

// RemoveReminder removes a reminder from runID. No-op if unknown.
func (e *Engine) RemoveReminder(runID, id string) {
	if runID == "" || id == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if rs, ok := e.runs[runID]; ok && rs != nil {
		delete(rs.reminders, id)
	}
}

// Snapshot returns the reminders due for emission at turnIndex of runID,
// enforcing per-run caps and turn-based rate limits and updating internal
// counters, ordered by priority tier (safety first) then ID. turnIndex
// should be the caller's own dense turn counter (agent.AgentState's
// len(Turns) at the point the prompt for this turn is built), not a
// call-count local to the Engine.
func (e *Engine) Snapshot(runID string, turnIndex int) []Reminder {
	if runID == "" {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rs, ok := e.runs[runID]
	if !ok || rs == nil || len(rs.reminders) == 0 {
		return nil
	}
	out := make([]Reminder, 0, len(rs.reminders))
	for _, st := range rs.reminders {
		if !shouldEmit(st, turnIndex) {
			continue
		}
		st.emitted++
		st.lastTurn = turnIndex
		out = append(out, st.reminder)
	}
	if len(out) == 0 {
		return nil
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ClearRun removes all reminder state for runID.
func (e *Engine) ClearRun(runID string) {
	if runID == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.runs, runID)
}

func (e *Engine) ensureRunLocked(runID string) *runState {
	if rs, ok := e.runs[runID]; ok && rs != nil {
		return rs
	}
	rs := &runState{reminders: make(map[string]*reminderState)}
	e.runs[runID] = rs
	return rs
}

// shouldEmit evaluates whether a reminder fires on turn, given its lifetime
// configuration. TierSafety reminders ignore MaxPerRun, but MinTurnsBetween
// still applies to avoid pathological repetition. "Never emitted" is read
// from emitted == 0, not from lastTurn, so a lastTurn of 0 is the real turn
// zero and rate-limits like any other turn.
func shouldEmit(st *reminderState, turn int) bool {
	if st == nil {
		return false
	}
	r := st.reminder
	if r.MaxPerRun > 0 && st.emitted >= r.MaxPerRun && r.Priority != TierSafety {
		return false
	}
	if r.MinTurnsBetween > 0 && st.emitted > 0 {
		if delta := turn - st.lastTurn; delta < r.MinTurnsBetween {
			return false
		}
	}
	return true
}
