package runlog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentturn/agent/events"
	"github.com/loopforge/agentturn/agent/runlog"
)

type capturingStore struct {
	appended []*runlog.Event
}

func (s *capturingStore) Append(_ context.Context, e *runlog.Event) error {
	s.appended = append(s.appended, e)
	return nil
}

func (s *capturingStore) List(_ context.Context, _ string, _ string, _ int) (runlog.Page, error) {
	return runlog.Page{}, nil
}

func TestSubscriberExtractsTurnIndexForTurnScopedEvents(t *testing.T) {
	store := &capturingStore{}
	sub := runlog.NewSubscriber(store, "run-1")

	require.NoError(t, sub.HandleEvent(context.Background(), events.NewStepStarted("agent-1", 3)))
	require.NoError(t, sub.HandleEvent(context.Background(), events.NewToolCallStarted("agent-1", 4, "add", nil)))

	require.Len(t, store.appended, 2)
	require.Equal(t, 3, store.appended[0].TurnIndex)
	require.Equal(t, events.StepStarted, store.appended[0].Type)
	require.Equal(t, 4, store.appended[1].TurnIndex)
}

func TestSubscriberReportsNegativeOneForRunScopedEvents(t *testing.T) {
	store := &capturingStore{}
	sub := runlog.NewSubscriber(store, "run-1")

	require.NoError(t, sub.HandleEvent(context.Background(), events.NewRunStarted("agent-1", "do the thing")))
	require.NoError(t, sub.HandleEvent(context.Background(), events.NewRunCompleted("agent-1", true, "", 2, 0)))

	require.Len(t, store.appended, 2)
	require.Equal(t, -1, store.appended[0].TurnIndex)
	require.Equal(t, -1, store.appended[1].TurnIndex)
}

func TestSubscriberStampsRunIDAndAgentID(t *testing.T) {
	store := &capturingStore{}
	sub := runlog.NewSubscriber(store, "run-42")

	require.NoError(t, sub.HandleEvent(context.Background(), events.NewStepCompleted("agent-9", 0)))

	require.Equal(t, "run-42", store.appended[0].RunID)
	require.Equal(t, "agent-9", string(store.appended[0].AgentID))
}

func TestSubscriberMarshalsPayload(t *testing.T) {
	store := &capturingStore{}
	sub := runlog.NewSubscriber(store, "run-1")

	require.NoError(t, sub.HandleEvent(context.Background(), events.NewStatusUpdate("agent-1", 1, "working", "details", 50)))
	require.Contains(t, string(store.appended[0].Payload), `"working"`)
}
