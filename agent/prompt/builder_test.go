package prompt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/prompt"
	"github.com/loopforge/agentturn/agent/tool"
)

func TestBuildIncludesGoalAndToolCatalog(t *testing.T) {
	reg := tool.NewMapRegistry()
	reg.Register(stubTool{name: "search", desc: "full text search", schema: []byte(`{"type":"object"}`)})

	b := prompt.New(reg, prompt.Options{})
	state := &agent.AgentState{Goal: "find the bug"}

	msgs := b.Build(state)
	require.Len(t, msgs, 1)
	require.Equal(t, prompt.RoleSystem, msgs[0].Role)
	require.Contains(t, msgs[0].Content, "find the bug")
	require.Contains(t, msgs[0].Content, "search")
	require.Contains(t, msgs[0].Content, "full text search")
}

func TestBuildReportsNoToolsWhenRegistryEmpty(t *testing.T) {
	reg := tool.NewMapRegistry()
	b := prompt.New(reg, prompt.Options{})

	msgs := b.Build(&agent.AgentState{Goal: "goal"})
	require.Contains(t, msgs[0].Content, "No tools are available.")
}

func TestBuildAppendsSeedMessagesInOrder(t *testing.T) {
	reg := tool.NewMapRegistry()
	b := prompt.New(reg, prompt.Options{})

	state := &agent.AgentState{
		Goal: "goal",
		AdditionalMessages: &agent.SeedMessages{
			System:    []string{"sys seed"},
			Assistant: []string{"asst seed"},
			User:      []string{"user seed"},
		},
	}

	msgs := b.Build(state)
	require.Len(t, msgs, 4)
	require.Equal(t, prompt.RoleSystem, msgs[1].Role)
	require.Equal(t, "sys seed", msgs[1].Content)
	require.Equal(t, prompt.RoleAssistant, msgs[2].Role)
	require.Equal(t, "asst seed", msgs[2].Content)
	require.Equal(t, prompt.RoleUser, msgs[3].Role)
	require.Equal(t, "user seed", msgs[3].Content)
}

func TestBuildOmitsHistoryWhenNoTurns(t *testing.T) {
	reg := tool.NewMapRegistry()
	b := prompt.New(reg, prompt.Options{})

	msgs := b.Build(&agent.AgentState{Goal: "goal"})
	require.Len(t, msgs, 1, "no HISTORY message should be appended when there are no turns")
}

func TestBuildSummarizesOlderTurnsBeyondMaxRecentTurns(t *testing.T) {
	reg := tool.NewMapRegistry()
	b := prompt.New(reg, prompt.Options{MaxRecentTurns: 1, EnableHistorySummarization: true})

	turns := []*agent.AgentTurn{
		{Index: 0, ToolResult: &agent.ToolExecutionResult{Tool: "add", Success: true, Output: 5}},
		{Index: 1, ToolResult: &agent.ToolExecutionResult{Tool: "sub", Success: true, Output: 1}},
	}
	msgs := b.Build(&agent.AgentState{Goal: "goal", Turns: turns})

	history := msgs[len(msgs)-1].Content
	require.Contains(t, history, "turn 0: called add -> ok")
	require.Contains(t, history, "turn 1:\n")
	require.Contains(t, history, "tool_result (sub)")
}

func TestBuildTruncatesOversizedToolOutput(t *testing.T) {
	reg := tool.NewMapRegistry()
	b := prompt.New(reg, prompt.Options{MaxToolOutputSize: 8})

	turns := []*agent.AgentTurn{
		{Index: 0, ToolResult: &agent.ToolExecutionResult{Tool: "dump", Success: true, Output: "0123456789abcdef"}},
	}
	msgs := b.Build(&agent.AgentState{Goal: "goal", Turns: turns})

	history := msgs[len(msgs)-1].Content
	require.Contains(t, history, `"truncated":true`)
	require.Contains(t, history, `"original_size":16`)
}

func TestBuildRendersFailedToolResultWithErrorStatus(t *testing.T) {
	reg := tool.NewMapRegistry()
	b := prompt.New(reg, prompt.Options{})

	turns := []*agent.AgentTurn{
		{Index: 0, ToolResult: &agent.ToolExecutionResult{Tool: "add", Success: false, Error: "boom"}},
	}
	msgs := b.Build(&agent.AgentState{Goal: "goal", Turns: turns})

	history := msgs[len(msgs)-1].Content
	require.Contains(t, history, "error: boom")
}

type stubTool struct {
	name   string
	desc   string
	schema []byte
}

func (t stubTool) Name() string         { return t.name }
func (t stubTool) Description() string  { return t.desc }
func (t stubTool) ParamsSchema() []byte { return t.schema }
func (t stubTool) Invoke(_ context.Context, _ map[string]any) (any, error) {
	return nil, nil
}
