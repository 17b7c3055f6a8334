// Package events is the turn engine's Event Bus (C8, spec §4.10): a typed,
// synchronous fan-out of lifecycle events emitted by the orchestrator, tool
// executor, and LLM communicator, grounded on the example pack's hooks
// package (bus.go/events.go) but narrowed to the turn-engine's own event
// vocabulary instead of goa-ai's workflow/policy/memory event set.
package events

import "time"

// Type enumerates the turn engine's lifecycle events (spec §4.10).
type Type string

const (
	RunStarted        Type = "run_started"
	StepStarted       Type = "step_started"
	LLMCallStarted    Type = "llm_call_started"
	LLMChunkReceived  Type = "llm_chunk_received"
	LLMCallCompleted  Type = "llm_call_completed"
	ToolCallStarted   Type = "tool_call_started"
	ToolCallCompleted Type = "tool_call_completed"
	StepCompleted     Type = "step_completed"
	RunCompleted      Type = "run_completed"
	StatusUpdate      Type = "status_update"
)

// Event is the interface every published event satisfies. Subscribers type
// switch on the concrete struct to reach event-specific fields.
type Event interface {
	// Kind returns the event's Type constant.
	Kind() Type
	// AgentID is the agent this event pertains to.
	AgentID() string
	// Timestamp is when the event was constructed, in Unix nanoseconds.
	Timestamp() int64
}

type base struct {
	agentID   string
	timestamp int64
}

func newBase(agentID string) base {
	return base{agentID: agentID, timestamp: time.Now().UnixNano()}
}

func (b base) AgentID() string  { return b.agentID }
func (b base) Timestamp() int64 { return b.timestamp }

// RunStartedEvent fires once when an orchestrator run begins.
type RunStartedEvent struct {
	base
	Goal string
}

func (RunStartedEvent) Kind() Type { return RunStarted }

// NewRunStarted constructs a RunStartedEvent.
func NewRunStarted(agentID, goal string) RunStartedEvent {
	return RunStartedEvent{base: newBase(agentID), Goal: goal}
}

// StepStartedEvent fires at the top of each turn loop iteration.
type StepStartedEvent struct {
	base
	TurnIndex int
}

func (StepStartedEvent) Kind() Type { return StepStarted }

// NewStepStarted constructs a StepStartedEvent.
func NewStepStarted(agentID string, turnIndex int) StepStartedEvent {
	return StepStartedEvent{base: newBase(agentID), TurnIndex: turnIndex}
}

// LLMCallStartedEvent fires immediately before an LLM adapter call.
type LLMCallStartedEvent struct {
	base
	TurnIndex int
}

func (LLMCallStartedEvent) Kind() Type { return LLMCallStarted }

// NewLLMCallStarted constructs an LLMCallStartedEvent.
func NewLLMCallStarted(agentID string, turnIndex int) LLMCallStartedEvent {
	return LLMCallStartedEvent{base: newBase(agentID), TurnIndex: turnIndex}
}

// LLMChunkReceivedEvent fires for each streamed chunk from the LLM adapter.
type LLMChunkReceivedEvent struct {
	base
	TurnIndex int
	Delta     string
}

func (LLMChunkReceivedEvent) Kind() Type { return LLMChunkReceived }

// NewLLMChunkReceived constructs an LLMChunkReceivedEvent.
func NewLLMChunkReceived(agentID string, turnIndex int, delta string) LLMChunkReceivedEvent {
	return LLMChunkReceivedEvent{base: newBase(agentID), TurnIndex: turnIndex, Delta: delta}
}

// LLMCallCompletedEvent fires exactly once per LLM call, whether it
// succeeded or failed — the communicator guarantees a matching Completed
// for every Started even on error (spec §4.9's pairing guarantee).
type LLMCallCompletedEvent struct {
	base
	TurnIndex int
	Err       error
	Duration  time.Duration
}

func (LLMCallCompletedEvent) Kind() Type { return LLMCallCompleted }

// NewLLMCallCompleted constructs an LLMCallCompletedEvent.
func NewLLMCallCompleted(agentID string, turnIndex int, err error, d time.Duration) LLMCallCompletedEvent {
	return LLMCallCompletedEvent{base: newBase(agentID), TurnIndex: turnIndex, Err: err, Duration: d}
}

// ToolCallStartedEvent fires before the Tool Executor invokes a tool.
type ToolCallStartedEvent struct {
	base
	TurnIndex int
	Tool      string
	Params    map[string]any
}

func (ToolCallStartedEvent) Kind() Type { return ToolCallStarted }

// NewToolCallStarted constructs a ToolCallStartedEvent.
func NewToolCallStarted(agentID string, turnIndex int, tool string, params map[string]any) ToolCallStartedEvent {
	return ToolCallStartedEvent{base: newBase(agentID), TurnIndex: turnIndex, Tool: tool, Params: params}
}

// ToolCallCompletedEvent fires after every tool invocation outcome —
// success, validation_error, timeout, not_found, or tool_error (spec §4.3;
// cancellations are re-raised and do not reach this event).
type ToolCallCompletedEvent struct {
	base
	TurnIndex int
	Tool      string
	Outcome   string
	Success   bool
	Duration  time.Duration
}

func (ToolCallCompletedEvent) Kind() Type { return ToolCallCompleted }

// NewToolCallCompleted constructs a ToolCallCompletedEvent.
func NewToolCallCompleted(agentID string, turnIndex int, tool, outcome string, success bool, d time.Duration) ToolCallCompletedEvent {
	return ToolCallCompletedEvent{base: newBase(agentID), TurnIndex: turnIndex, Tool: tool, Outcome: outcome, Success: success, Duration: d}
}

// StepCompletedEvent fires at the end of each turn loop iteration.
type StepCompletedEvent struct {
	base
	TurnIndex int
}

func (StepCompletedEvent) Kind() Type { return StepCompleted }

// NewStepCompleted constructs a StepCompletedEvent.
func NewStepCompleted(agentID string, turnIndex int) StepCompletedEvent {
	return StepCompletedEvent{base: newBase(agentID), TurnIndex: turnIndex}
}

// RunCompletedEvent fires once when the orchestrator run terminates, for
// any reason (finished, max turns exceeded, cancelled, fatal error).
type RunCompletedEvent struct {
	base
	Succeeded  bool
	ErrorKind  string
	TotalTurns int
	Duration   time.Duration
}

func (RunCompletedEvent) Kind() Type { return RunCompleted }

// NewRunCompleted constructs a RunCompletedEvent.
func NewRunCompleted(agentID string, succeeded bool, errKind string, totalTurns int, d time.Duration) RunCompletedEvent {
	return RunCompletedEvent{base: newBase(agentID), Succeeded: succeeded, ErrorKind: errKind, TotalTurns: totalTurns, Duration: d}
}

// StatusUpdateEvent carries the optional, bounded-length public-status
// fields the model may emit on a ModelMessage (spec §4.7: StatusTitle
// <=60 chars, StatusDetails <=160 chars).
type StatusUpdateEvent struct {
	base
	TurnIndex     int
	StatusTitle   string
	StatusDetails string
	ProgressPct   int
}

func (StatusUpdateEvent) Kind() Type { return StatusUpdate }

// NewStatusUpdate constructs a StatusUpdateEvent.
func NewStatusUpdate(agentID string, turnIndex int, title, details string, progressPct int) StatusUpdateEvent {
	return StatusUpdateEvent{base: newBase(agentID), TurnIndex: turnIndex, StatusTitle: title, StatusDetails: details, ProgressPct: progressPct}
}
