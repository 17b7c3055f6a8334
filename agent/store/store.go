// Package store defines the state-store contract of spec §4.2/§6 and a
// logical record shape implementations should honor: a header record
// followed by turn records in index order. Any encoding honoring that shape
// is conformant; this package does not mandate on-disk bytes.
package store

import (
	"context"
	"time"

	"github.com/loopforge/agentturn/agent"
)

// Store loads, saves, and deletes AgentState by agent id. Save must be
// atomic with respect to concurrent readers of the same id (write-temp-
// then-rename, or the backend's equivalent). Load of an unknown id returns
// (nil, false, nil) — not an error — and load of malformed content does the
// same after logging a warning (spec §4.2).
type Store interface {
	// Load returns the persisted state for agentID, or ok=false if no state
	// exists (or the persisted content was unreadable).
	Load(ctx context.Context, agentID agent.ID) (state *agent.AgentState, ok bool, err error)
	// Save atomically persists state under agentID. Save failures are fatal
	// for the current turn (spec §7: StateSaveFailed).
	Save(ctx context.Context, agentID agent.ID, state *agent.AgentState) error
	// Delete removes any persisted state for agentID. Deleting an unknown id
	// is not an error.
	Delete(ctx context.Context, agentID agent.ID) error
}

// Header is the logical envelope record persisted ahead of the turn records
// (spec §4.2, §6). Concrete stores may render this however best fits their
// backend (a JSON line, a document field, a row) as long as load
// reconstructs an equivalent agent.AgentState.
type Header struct {
	AgentID   agent.ID
	Goal      string
	UpdatedAt time.Time
	Metadata  map[string]any
}
