package tool

import (
	"context"
	"errors"
	"time"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/schema"
	"github.com/loopforge/agentturn/agent/telemetry"
)

// Outcome classifies how an invocation finished (spec §4.3).
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeValidationError Outcome = "validation_error"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeToolError       Outcome = "tool_error"
	OutcomeCancelled       Outcome = "cancelled"
)

// StartedFunc and CompletedFunc let callers observe ToolCallStarted/
// ToolCallCompleted without the executor depending on the events package
// directly, keeping this package's dependency graph a leaf (spec §4.3: "For
// every outcome the executor emits ToolCallStarted before and
// ToolCallCompleted after").
type (
	StartedFunc   func(ctx context.Context, tool string, params map[string]any)
	CompletedFunc func(ctx context.Context, result *agent.ToolExecutionResult, outcome Outcome)
)

// Executor validates, invokes, times, and classifies tool calls.
type Executor struct {
	Registry    Registry
	Introspector *schema.Introspector
	Timeout     time.Duration
	Logger      telemetry.Logger
	Tracer      telemetry.Tracer
	Metrics     telemetry.Metrics
	OnStarted   StartedFunc
	OnCompleted CompletedFunc
}

// NewExecutor constructs an Executor with the given registry/introspector
// and default ToolTimeout. Logger/Tracer/Metrics default to no-ops.
func NewExecutor(reg Registry, introspector *schema.Introspector, timeout time.Duration) *Executor {
	return &Executor{
		Registry:     reg,
		Introspector: introspector,
		Timeout:      timeout,
		Logger:       telemetry.NoopLogger{},
		Tracer:       telemetry.NoopTracer{},
		Metrics:      telemetry.NoopMetrics{},
	}
}

// Execute validates and invokes toolName with params, honoring ctx
// cancellation and the executor's per-call timeout. A caller-cancelled ctx
// re-raises agent.ErrCancelled rather than returning a failed result (spec
// §4.3, §5: cancelled calls are not recorded as tool failures).
func (e *Executor) Execute(ctx context.Context, toolName string, params map[string]any) (*agent.ToolExecutionResult, error) {
	if e.OnStarted != nil {
		e.OnStarted(ctx, toolName, params)
	}

	spanCtx, span := e.Tracer.StartSpan(ctx, "tool.execute", telemetry.KV{Key: "tool", Value: toolName})
	defer span.End()

	start := time.Now()
	result, outcome, err := e.execute(spanCtx, toolName, params)
	elapsed := time.Since(start)

	if err != nil {
		span.SetError(err)
		return nil, err
	}
	result.ExecutionTime = elapsed.Nanoseconds()
	result.CreatedAtUnix = time.Now().UnixNano()

	e.Metrics.RecordHistogram(ctx, "tool.execution_time_ms", float64(elapsed.Milliseconds()),
		telemetry.KV{Key: "tool", Value: toolName}, telemetry.KV{Key: "outcome", Value: string(outcome)})
	if e.OnCompleted != nil {
		e.OnCompleted(ctx, result, outcome)
	}
	return result, nil
}

func (e *Executor) execute(ctx context.Context, toolName string, params map[string]any) (*agent.ToolExecutionResult, Outcome, error) {
	if ctx.Err() != nil {
		return nil, OutcomeCancelled, agent.NewError(agent.ErrKindCancelled, "tool call cancelled before start", agent.ErrCancelled)
	}

	d, ok := e.Registry.Lookup(toolName)
	if !ok {
		e.Logger.Warn(ctx, "tool not found", "tool", toolName)
		return &agent.ToolExecutionResult{
			Success: false,
			Tool:    toolName,
			Params:  params,
			Error:   "tool not found: " + toolName,
			Output:  map[string]any{"type": "not_found"},
		}, OutcomeNotFound, nil
	}

	if e.Introspector != nil {
		if verr := e.Introspector.Validate(toolName, params); verr != nil {
			e.Logger.Info(ctx, "tool validation failed", "tool", toolName, "missing", verr.Missing)
			return &agent.ToolExecutionResult{
				Success: false,
				Tool:    toolName,
				Params:  params,
				Error:   verr.Error(),
				Output: map[string]any{
					"type":    "validation_error",
					"missing": verr.Missing,
					"errors":  verr.Errors,
				},
			}, OutcomeValidationError, nil
		}
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if e.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	output, err := d.Invoke(callCtx, params)
	switch {
	case err == nil:
		return &agent.ToolExecutionResult{
			Success: true,
			Output:  output,
			Tool:    toolName,
			Params:  params,
		}, OutcomeSuccess, nil

	case ctx.Err() != nil:
		// The caller's context (not the per-call deadline) was cancelled:
		// re-raise rather than recording a failure.
		return nil, OutcomeCancelled, agent.NewError(agent.ErrKindCancelled, "tool call cancelled", agent.ErrCancelled)

	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		e.Logger.Warn(ctx, "tool call timed out", "tool", toolName, "timeout", e.Timeout)
		return &agent.ToolExecutionResult{
			Success: false,
			Tool:    toolName,
			Params:  params,
			Error:   "tool call timed out",
			Output:  map[string]any{"type": "timeout"},
		}, OutcomeTimeout, nil

	default:
		e.Logger.Warn(ctx, "tool call failed", "tool", toolName, "error", err.Error())
		return &agent.ToolExecutionResult{
			Success: false,
			Tool:    toolName,
			Params:  params,
			Error:   err.Error(),
			Output:  map[string]any{"type": "tool_error"},
		}, OutcomeToolError, nil
	}
}
