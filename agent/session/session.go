// Package session defines durable session lifecycle and run metadata
// primitives layered on top of the turn engine's per-agent AgentState (spec
// §3's supplemented conversational-container concept): a Session groups
// multiple agent runs into one conversation thread with explicit
// create/end lifecycle, independent of any single run's own lifecycle.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/loopforge/agentturn/agent"
)

type (
	// Session captures durable session lifecycle state.
	//
	// Contract:
	//   - Session IDs are stable and caller-provided.
	//   - Sessions are created explicitly (CreateSession) and ended
	//     explicitly (EndSession).
	//   - Ended sessions are terminal: new runs must not start under an
	//     ended session.
	Session struct {
		ID        string
		Status    Status
		CreatedAt time.Time
		EndedAt   *time.Time
	}

	// RunMeta captures persistent metadata about one orchestrator.Run
	// invocation, addressable independently of the AgentState the run
	// mutates.
	RunMeta struct {
		// AgentID identifies which agent processed the run.
		AgentID agent.ID
		// RunID is the durable identifier of this particular run attempt.
		RunID string
		// SessionID groups related runs into a conversation thread.
		SessionID string
		Status    RunStatus
		StartedAt time.Time
		UpdatedAt time.Time
		// Labels stores caller- or policy-provided labels.
		Labels map[string]string
		// Metadata stores implementation-specific metadata (e.g. error kind).
		Metadata map[string]any
	}

	// Store persists session lifecycle state and run metadata. Failures are
	// surfaced to callers so an orchestrator run can fail fast when
	// session/run metadata is unavailable.
	Store interface {
		// CreateSession creates (or returns) an active session. Idempotent
		// for active sessions. Returns ErrSessionEnded if the session
		// exists but is terminal.
		CreateSession(ctx context.Context, sessionID string, createdAt time.Time) (Session, error)
		// LoadSession loads an existing session, or ErrSessionNotFound.
		LoadSession(ctx context.Context, sessionID string) (Session, error)
		// EndSession ends a session and returns its terminal state.
		// Idempotent: ending an already-ended session returns the stored
		// session unchanged.
		EndSession(ctx context.Context, sessionID string, endedAt time.Time) (Session, error)

		// UpsertRun inserts or updates run metadata.
		UpsertRun(ctx context.Context, run RunMeta) error
		// LoadRun loads run metadata, or ErrRunNotFound.
		LoadRun(ctx context.Context, runID string) (RunMeta, error)
		// ListRunsBySession lists runs for sessionID. When statuses is
		// non-empty, only runs whose status matches one of the provided
		// values are returned.
		ListRunsBySession(ctx context.Context, sessionID string, statuses []RunStatus) ([]RunMeta, error)
	}

	// Status is the lifecycle state of a Session.
	Status string

	// RunStatus is the lifecycle state of one orchestrator.Run invocation,
	// tracked independently of the agent.AgentState the run mutates.
	RunStatus string
)

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"

	RunStatusRunning   RunStatus = "running"
	RunStatusPaused    RunStatus = "paused"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

var (
	ErrSessionNotFound = errors.New("session: not found")
	ErrSessionEnded    = errors.New("session: ended")
	ErrRunNotFound     = errors.New("session: run not found")
)
