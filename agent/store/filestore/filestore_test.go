package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/store/filestore"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st, err := filestore.New(dir, nil)
	require.NoError(t, err)

	state := &agent.AgentState{
		AgentID:   "agent-1",
		Goal:      "say hello",
		UpdatedAt: time.Now().Truncate(time.Second),
		Metadata:  map[string]any{"k": "v"},
		Turns: []*agent.AgentTurn{
			{
				Index:  0,
				TurnID: "t0",
				LLMMessage: &agent.ModelMessage{
					Action:      agent.ActionFinish,
					ActionInput: agent.ActionInput{Final: "hello"},
				},
				CreatedAt: time.Now().Truncate(time.Second),
			},
		},
	}

	require.NoError(t, st.Save(context.Background(), "agent-1", state))

	loaded, ok, err := st.Load(context.Background(), "agent-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, state.Goal, loaded.Goal)
	require.Equal(t, state.Metadata, loaded.Metadata)
	require.Len(t, loaded.Turns, 1)
	require.Equal(t, "t0", loaded.Turns[0].TurnID)
	require.Equal(t, agent.ActionFinish, loaded.Turns[0].LLMMessage.Action)
}

func TestLoadUnknownAgentReturnsNotFoundNotError(t *testing.T) {
	dir := t.TempDir()
	st, err := filestore.New(dir, nil)
	require.NoError(t, err)

	loaded, ok, err := st.Load(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, loaded)
}

func TestLoadCorruptFileReturnsNotFoundNotError(t *testing.T) {
	dir := t.TempDir()
	st, err := filestore.New(dir, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.jsonl"), []byte("not json at all\n"), 0o644))

	loaded, ok, err := st.Load(context.Background(), "broken")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, loaded)
}

func TestDeleteUnknownAgentIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	st, err := filestore.New(dir, nil)
	require.NoError(t, err)

	require.NoError(t, st.Delete(context.Background(), "nope"))
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	st, err := filestore.New(dir, nil)
	require.NoError(t, err)

	state := &agent.AgentState{AgentID: "agent-1", Goal: "first"}
	require.NoError(t, st.Save(context.Background(), "agent-1", state))

	state2 := &agent.AgentState{AgentID: "agent-1", Goal: "second"}
	require.NoError(t, st.Save(context.Background(), "agent-1", state2))

	loaded, ok, err := st.Load(context.Background(), "agent-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", loaded.Goal)

	// No stray .tmp files should remain after a successful save.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp")
	}
}

func TestDeleteThenLoadReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	st, err := filestore.New(dir, nil)
	require.NoError(t, err)

	state := &agent.AgentState{AgentID: "agent-1", Goal: "first"}
	require.NoError(t, st.Save(context.Background(), "agent-1", state))
	require.NoError(t, st.Delete(context.Background(), "agent-1"))

	_, ok, err := st.Load(context.Background(), "agent-1")
	require.NoError(t, err)
	require.False(t, ok)
}
