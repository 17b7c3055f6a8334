package orchestrator

import "context"

// toolCallCtxKey is an unexported type so values stashed here never collide
// with keys set by other packages (standard Go context-key idiom).
type toolCallCtxKey struct{}

type toolCallCtxValue struct {
	agentID   string
	turnIndex int
}

// withToolCallContext stashes the agent id and turn index a subsequent
// tool.Executor.OnStarted/OnCompleted callback needs to publish a
// correctly-addressed ToolCallStarted/ToolCallCompleted event, since the
// Executor's hook signatures carry only what the executor itself knows
// (tool name, params, result) and not which turn initiated the call.
func withToolCallContext(ctx context.Context, agentID string, turnIndex int) context.Context {
	return context.WithValue(ctx, toolCallCtxKey{}, toolCallCtxValue{agentID: agentID, turnIndex: turnIndex})
}

func toolCallContext(ctx context.Context) (agentID string, turnIndex int, ok bool) {
	v, ok := ctx.Value(toolCallCtxKey{}).(toolCallCtxValue)
	if !ok {
		return "", 0, false
	}
	return v.agentID, v.turnIndex, true
}
