package temporalengine

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/loopforge/agentturn/agent"
)

// WorkflowInput starts one durable agent run.
type WorkflowInput struct {
	AgentID  string
	Goal     string
	MaxTurns int
}

// WorkflowResult mirrors orchestrator.RunResult's user-visible outcome
// (spec §7), adapted to the field set a Temporal workflow can return through
// its default JSON data converter.
type WorkflowResult struct {
	Succeeded   bool
	FinalOutput string
	ErrorKind   string
	TotalTurns  int
	Turns       []*agent.AgentTurn
}

// activityOptions gives both activities a fixed 2-minute start-to-close
// timeout and up to 3 attempts under Temporal's retry policy, which, not
// this workflow, absorbs transient failures. The configured LLM and tool
// timeouts are not read here; the Communicator and Executor inside the
// activities apply their own.
func activityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})
}

// RunWorkflow drives the Reason/Act loop exactly as orchestrator.step /
// processToolCall do (spec §4.8), except each LLM decision and each tool
// invocation is an activity call instead of a direct in-process call, so
// Temporal's workflow history is the durable turn log for the duration of
// the workflow execution. The caller is responsible for later folding
// WorkflowResult.Turns into a store.Store-backed agent.AgentState if a
// permanent record outside Temporal's own retention window is required.
func RunWorkflow(ctx workflow.Context, in WorkflowInput) (WorkflowResult, error) {
	ctx = activityOptions(ctx)

	maxTurns := in.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 25
	}

	state := &agent.AgentState{AgentID: agent.ID(in.AgentID), Goal: in.Goal}

	for len(state.Turns) < maxTurns {
		turnIndex := len(state.Turns)

		var decided DecideOutput
		if err := workflow.ExecuteActivity(ctx, ActivityNameDecide, DecideInput{State: state}).Get(ctx, &decided); err != nil {
			state.Turns = append(state.Turns, &agent.AgentTurn{
				Index: turnIndex,
				ToolResult: &agent.ToolExecutionResult{
					Success: false,
					Tool:    "llm",
					Error:   err.Error(),
					Output:  map[string]any{"type": string(agent.ErrKindLLMCallFailed)},
				},
			})
			continue
		}

		msg := decided.Msg
		switch msg.Action {
		case agent.ActionFinish:
			state.Turns = append(state.Turns, &agent.AgentTurn{Index: turnIndex, LLMMessage: msg})
			return toResult(state, true, msg.ActionInput.Final, ""), nil

		case agent.ActionToolCall:
			var execOut ExecuteToolOutput
			execErr := workflow.ExecuteActivity(ctx, ActivityNameExecuteTool, ExecuteToolInput{
				State: state,
				Tool:  msg.ActionInput.Tool,
				Params: msg.ActionInput.Params,
			}).Get(ctx, &execOut)
			if execErr != nil {
				return toResult(state, false, "", string(agent.ErrKindToolError)), execErr
			}
			state.Turns = append(state.Turns, &agent.AgentTurn{
				Index:      turnIndex,
				LLMMessage: msg,
				ToolCall:   &agent.ToolCallRequest{Tool: msg.ActionInput.Tool, Params: msg.ActionInput.Params, TurnID: execOut.Result.TurnID},
				ToolResult: execOut.Result,
			})
			if !execOut.Result.Success {
				state.Turns = append(state.Turns, &agent.AgentTurn{
					Index:     len(state.Turns),
					Synthetic: true,
					LLMMessage: &agent.ModelMessage{
						Action:      agent.ActionRetry,
						ActionInput: agent.ActionInput{Summary: "Tool " + msg.ActionInput.Tool + " failed: " + execOut.Result.Error},
					},
				})
			}

		default:
			state.Turns = append(state.Turns, &agent.AgentTurn{Index: turnIndex, LLMMessage: msg})
		}
	}

	return toResult(state, false, "", string(agent.ErrKindMaxTurnsExceeded)), nil
}

func toResult(state *agent.AgentState, succeeded bool, final, errKind string) WorkflowResult {
	return WorkflowResult{
		Succeeded:   succeeded,
		FinalOutput: final,
		ErrorKind:   errKind,
		TotalTurns:  len(state.Turns),
		Turns:       state.Turns,
	}
}
