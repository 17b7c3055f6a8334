// Package agent defines the shared data model for the turn engine: agent
// identifiers, the append-only run state, the decoded model decision, and the
// stable error taxonomy every other package in this module builds on.
package agent

// ID is the strong type for a stable agent identifier. Using a named string
// type keeps agent ids from being accidentally mixed with other free-form
// strings (tool names, turn ids) across the codebase; it is also the value
// callers use to key AgentState persistence (see store.Store).
type ID string
