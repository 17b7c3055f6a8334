package agent

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the stable error taxonomy of spec §7. Consumers switch
// on Kind rather than on error string contents or concrete types, since the
// underlying failure may originate from any of several subsystems.
type ErrorKind string

const (
	// ErrKindCancelled reports caller-initiated cancellation. It propagates
	// upward and aborts the run; it is never recorded as a tool or LLM
	// failure.
	ErrKindCancelled ErrorKind = "cancelled_by_caller"
	// ErrKindLLMTimeout reports that an LLM call exceeded its deadline.
	ErrKindLLMTimeout ErrorKind = "llm_timeout"
	// ErrKindLLMCallFailed reports any other LLM adapter failure.
	ErrKindLLMCallFailed ErrorKind = "llm_call_failed"
	// ErrKindLLMParseError reports that the model's Re/Act JSON response
	// could not be decoded into a ModelMessage.
	ErrKindLLMParseError ErrorKind = "llm_parse_error"
	// ErrKindFunctionArgsInvalid reports that native function-call arguments
	// could not be decoded as a JSON object.
	ErrKindFunctionArgsInvalid ErrorKind = "function_arguments_invalid"
	// ErrKindToolNotFound reports a tool call against a name absent from the
	// registry.
	ErrKindToolNotFound ErrorKind = "tool_not_found"
	// ErrKindToolValidation reports a tool parameter schema violation.
	ErrKindToolValidation ErrorKind = "tool_validation_error"
	// ErrKindToolTimeout reports a tool invocation that exceeded its deadline.
	ErrKindToolTimeout ErrorKind = "tool_timeout"
	// ErrKindToolError reports any other error raised during tool invocation.
	ErrKindToolError ErrorKind = "tool_error"
	// ErrKindMaxTurnsExceeded reports that the run exhausted its turn budget
	// without reaching a terminal state.
	ErrKindMaxTurnsExceeded ErrorKind = "max_turns_exceeded"
	// ErrKindStateSaveFailed reports a fatal failure persisting AgentState.
	ErrKindStateSaveFailed ErrorKind = "state_save_failed"
)

// Error is the structured error type carried across component boundaries for
// the handful of kinds that are genuinely fatal to a run (see ErrorKind
// doc comments for which ones are recoverable vs. fatal). Recoverable
// failures are represented as ToolExecutionResult/ModelMessage values, not
// as Error — only CancelledByCaller and StateSaveFailed ever leave the
// orchestrator as a Go error. MaxTurnsExceeded is reported through the run
// result's Err and ErrorKind, with a nil Go error.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError constructs an Error of the given kind.
func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf extracts the ErrorKind from err, or "" if err is nil or not an
// *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ErrCancelled is returned (wrapped in an *Error) when a caller-supplied
// context is cancelled at a turn boundary. The orchestrator re-raises it
// to abort the run without mutating state or emitting events for the
// in-flight step (spec §8 property 8).
var ErrCancelled = errors.New("run cancelled by caller")
