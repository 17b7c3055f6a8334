// Package runlog provides a durable, append-only event log for agent runs,
// separate from the turn log in agent.AgentState (spec §3: the turn log
// remains the single source of truth for resuming a run; the run log exists
// purely for external introspection tooling to page through a run's
// lifecycle without replaying full state).
package runlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/events"
)

type (
	// Event is a single immutable run event appended to the run log.
	//
	// Store implementations assign ID when persisting the event. IDs are
	// opaque, monotonically ordered within a run, and suitable for
	// cursor-based pagination.
	Event struct {
		// ID is the store-assigned opaque identifier for this event.
		ID string
		// RunID is the identifier of the run this event belongs to.
		RunID string
		// AgentID is the identifier of the agent that emitted the event.
		AgentID agent.ID
		// SessionID groups related runs into a conversation thread, when the
		// caller is also using package session.
		SessionID string
		// TurnIndex identifies the conversational turn within the run, or -1
		// for an event not tied to a specific turn (spec §4.9 reasoning
		// calls).
		TurnIndex int
		// Type is the event.Bus event kind.
		Type events.Type
		// Payload is the canonical JSON-encoded event payload.
		Payload json.RawMessage
		// Timestamp is the event time.
		Timestamp time.Time
	}

	// Page is a forward page of run events.
	Page struct {
		// Events are ordered oldest-first.
		Events []*Event
		// NextCursor is the cursor to use to fetch the next page. It is empty
		// when there are no further events.
		NextCursor string
	}

	// Store is an append-only event store for run introspection.
	//
	// Implementations must provide stable ordering within a run. Cursor
	// values are store-owned and opaque to callers.
	Store interface {
		// Append stores the event in the run log. Append must be durable:
		// failures are surfaced to callers so runs can fail fast when
		// canonical logging is unavailable.
		Append(ctx context.Context, e *Event) error

		// List returns the next forward page of events for the given run
		// ID. Cursor is an opaque value returned by a previous call to List
		// (or empty to start from the beginning). Limit must be > 0.
		List(ctx context.Context, runID string, cursor string, limit int) (Page, error)
	}
)

// Subscriber adapts a runlog.Store into an events.Subscriber, so a run log
// can be populated by attaching it to the same event bus the orchestrator
// publishes ToolCallStarted/RunCompleted/etc. events on, instead of the
// orchestrator depending on runlog directly.
type Subscriber struct {
	Store Store
	RunID string
}

// NewSubscriber constructs a Subscriber appending every event it observes
// under runID.
func NewSubscriber(store Store, runID string) *Subscriber {
	return &Subscriber{Store: store, RunID: runID}
}

// HandleEvent implements events.Subscriber.
func (s *Subscriber) HandleEvent(ctx context.Context, evt events.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.Store.Append(ctx, &Event{
		RunID:     s.RunID,
		AgentID:   agent.ID(evt.AgentID()),
		TurnIndex: turnIndexOf(evt),
		Type:      evt.Kind(),
		Payload:   payload,
		Timestamp: time.Unix(0, evt.Timestamp()),
	})
}

// turnIndexOf extracts TurnIndex from the concrete event types that carry
// one; RunStarted/RunCompleted are run-scoped rather than turn-scoped and
// report -1.
func turnIndexOf(evt events.Event) int {
	switch e := evt.(type) {
	case events.StepStartedEvent:
		return e.TurnIndex
	case events.LLMCallStartedEvent:
		return e.TurnIndex
	case events.LLMChunkReceivedEvent:
		return e.TurnIndex
	case events.LLMCallCompletedEvent:
		return e.TurnIndex
	case events.ToolCallStartedEvent:
		return e.TurnIndex
	case events.ToolCallCompletedEvent:
		return e.TurnIndex
	case events.StepCompletedEvent:
		return e.TurnIndex
	case events.StatusUpdateEvent:
		return e.TurnIndex
	default:
		return -1
	}
}
