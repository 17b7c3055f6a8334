package temporalengine

import (
	"context"
	"time"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/comm"
	"github.com/loopforge/agentturn/agent/dedupe"
	"github.com/loopforge/agentturn/agent/prompt"
	"github.com/loopforge/agentturn/agent/tool"
)

// Activity names, used to resolve Activities methods from workflow.
// ExecuteActivity without depending on Go's reflection-derived default
// names matching across binaries.
const (
	ActivityNameDecide      = "Decide"
	ActivityNameExecuteTool = "ExecuteTool"
)

// DecideInput carries the current turn log to the Decide activity; the
// activity rebuilds the prompt and asks the Communicator for the next
// decision exactly as orchestrator.Orchestrator.step does.
type DecideInput struct {
	State *agent.AgentState
}

// DecideOutput is the decoded decision.
type DecideOutput struct {
	Msg *agent.ModelMessage
}

// ExecuteToolInput carries the requested tool call plus the state needed
// for dedupe lookup.
type ExecuteToolInput struct {
	State  *agent.AgentState
	Tool   string
	Params map[string]any
}

// ExecuteToolOutput is the outcome of ExecuteTool, a dedupe hit or a fresh
// invocation indistinguishable to the caller (spec §4.4's cached-success
// contract).
type ExecuteToolOutput struct {
	Result *agent.ToolExecutionResult
}

// Activities bundles the dependencies RunWorkflow's two activities need.
// Unlike orchestrator.Orchestrator, Activities holds no mutable run state:
// everything the workflow needs across turns travels in WorkflowInput/
// DecideInput/ExecuteToolInput, since Temporal activities must be safely
// retriable and independently schedulable.
type Activities struct {
	Builder      *prompt.Builder
	Communicator *comm.Communicator
	Registry     tool.Registry
	Executor     *tool.Executor
	Deduper      *dedupe.Deduper
	UseFunctionCalling bool
}

// Decide renders the prompt for in.State and asks the Communicator for the
// next ModelMessage (spec §4.8's per-turn LLM call).
func (a *Activities) Decide(ctx context.Context, in DecideInput) (DecideOutput, error) {
	messages := a.Builder.Build(in.State)
	toolDescs := a.Registry.All()
	useFn := a.UseFunctionCalling && len(toolDescs) > 0

	msg, _, err := a.Communicator.Call(ctx, string(in.State.AgentID), len(in.State.Turns), messages, toolDescs, useFn)
	if err != nil {
		return DecideOutput{}, err
	}
	return DecideOutput{Msg: msg}, nil
}

// ExecuteTool consults the Deduplicator before invoking the Tool Executor,
// mirroring orchestrator.Orchestrator.processToolCall's dedupe-first
// ordering (spec §4.4).
func (a *Activities) ExecuteTool(ctx context.Context, in ExecuteToolInput) (ExecuteToolOutput, error) {
	desc, _ := a.Registry.Lookup(in.Tool)

	if cached, hit := a.Deduper.Lookup(ctx, in.State, desc, in.Tool, in.Params); hit {
		return ExecuteToolOutput{Result: cached}, nil
	}

	var ttlOverride time.Duration
	if desc != nil {
		if nanos, ok := tool.CustomTTL(desc); ok {
			ttlOverride = time.Duration(nanos)
		}
	}

	result, err := a.Executor.Execute(ctx, in.Tool, in.Params)
	if err != nil {
		return ExecuteToolOutput{}, err
	}
	_ = a.Deduper.Remember(ctx, in.Tool, in.Params, result, ttlOverride)
	return ExecuteToolOutput{Result: result}, nil
}
