package agent

// Action enumerates the decisions a ModelMessage may carry.
type Action string

const (
	// ActionPlan records an intermediate planning decision with no side
	// effect; the orchestrator appends the turn and continues.
	ActionPlan Action = "plan"
	// ActionToolCall requests one or more tool invocations.
	ActionToolCall Action = "tool_call"
	// ActionFinish terminates the run with a final answer.
	ActionFinish Action = "finish"
	// ActionRetry is a controller- or model-originated request to continue
	// without a tool call, typically following a recoverable failure.
	ActionRetry Action = "retry"
)

// ModelMessage is the decoded decision produced by the LLM Communicator for
// a single turn, after the streaming/JSON and native function-calling paths
// have both been normalized into this one shape (spec §3, §4.8).
type ModelMessage struct {
	// Thoughts carries the model's private reasoning text. It is opaque to
	// the UI and never required to surface.
	Thoughts string
	// Action is the decision for this turn.
	Action Action
	// ActionInput is the union payload for Action; exactly one of its
	// fields is populated depending on Action.
	ActionInput ActionInput
	// StatusTitle is an optional short user-facing status (<= 60 chars).
	StatusTitle string
	// StatusDetails is an optional longer user-facing status (<= 160 chars).
	StatusDetails string
	// NextStepHint is an optional short preview of the next step.
	NextStepHint string
	// ProgressPct is an optional progress estimate in [0, 100]. A negative
	// value means "not provided".
	ProgressPct int
}

// ActionInput is the union payload carried by a ModelMessage. Depending on
// Action, callers should consult Tool/Params (tool_call), Final (finish), or
// Summary (plan/retry).
type ActionInput struct {
	// Tool is the requested tool name (tool_call only).
	Tool string
	// Params is the JSON-compatible argument map for Tool (tool_call only).
	Params map[string]any
	// Final is the terminal answer text (finish only).
	Final string
	// Summary is a short free-text annotation (plan/retry only), used for
	// controller hints and planning notes.
	Summary string
}

// ToolCallRequest is a single requested tool invocation. TurnID is always the
// canonical dedupe hash of (Tool, Params) — see package canon — and doubles
// as both the dedupe key and the turn_id recorded on the resulting
// ToolExecutionResult (spec §3, §4.1).
type ToolCallRequest struct {
	Tool   string
	Params map[string]any
	TurnID string
}

// ToolExecutionResult is the outcome of one tool invocation (spec §3, §4.3).
type ToolExecutionResult struct {
	Success bool
	// Output carries the tool's return value on success, or a compact
	// machine-readable classifier map on failure:
	// {"type": "validation_error"|"timeout"|"tool_error", "missing": [...],
	// "errors": [...]}.
	Output any
	// Error is the human-readable failure summary. Empty on success.
	Error string
	// Tool and Params echo the originating request for audit/replay.
	Tool   string
	Params map[string]any
	// TurnID is the canonical dedupe hash of (Tool, Params).
	TurnID        string
	ExecutionTime int64 // nanoseconds
	CreatedAtUnix int64 // unix nanos, for dedupe freshness comparisons
}
