package inmem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentturn/agent/session"
	"github.com/loopforge/agentturn/agent/session/inmem"
)

func TestCreateSessionIsIdempotentWhileActive(t *testing.T) {
	s := inmem.New()
	now := time.Now()

	a, err := s.CreateSession(context.Background(), "sess-1", now)
	require.NoError(t, err)
	require.Equal(t, session.StatusActive, a.Status)

	b, err := s.CreateSession(context.Background(), "sess-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, a.CreatedAt, b.CreatedAt, "re-creating an active session returns its original state")
}

func TestCreateSessionAfterEndedReturnsErrSessionEnded(t *testing.T) {
	s := inmem.New()
	now := time.Now()
	_, err := s.CreateSession(context.Background(), "sess-1", now)
	require.NoError(t, err)
	_, err = s.EndSession(context.Background(), "sess-1", now.Add(time.Minute))
	require.NoError(t, err)

	_, err = s.CreateSession(context.Background(), "sess-1", now)
	require.ErrorIs(t, err, session.ErrSessionEnded)
}

func TestLoadSessionUnknownReturnsNotFound(t *testing.T) {
	s := inmem.New()
	_, err := s.LoadSession(context.Background(), "missing")
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestEndSessionIsIdempotent(t *testing.T) {
	s := inmem.New()
	now := time.Now()
	_, err := s.CreateSession(context.Background(), "sess-1", now)
	require.NoError(t, err)

	first, err := s.EndSession(context.Background(), "sess-1", now.Add(time.Minute))
	require.NoError(t, err)

	second, err := s.EndSession(context.Background(), "sess-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, *first.EndedAt, *second.EndedAt, "ending an already-ended session must not move EndedAt")
}

func TestUpsertRunPreservesStartedAtAcrossUpdates(t *testing.T) {
	s := inmem.New()
	started := time.Now()
	err := s.UpsertRun(context.Background(), session.RunMeta{
		AgentID: "agent-1", RunID: "run-1", SessionID: "sess-1", Status: session.RunStatusRunning, StartedAt: started,
	})
	require.NoError(t, err)

	err = s.UpsertRun(context.Background(), session.RunMeta{
		AgentID: "agent-1", RunID: "run-1", SessionID: "sess-1", Status: session.RunStatusCompleted,
	})
	require.NoError(t, err)

	run, err := s.LoadRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.True(t, run.StartedAt.Equal(started))
	require.Equal(t, session.RunStatusCompleted, run.Status)
}

func TestUpsertRunRejectsChangedStartedAt(t *testing.T) {
	s := inmem.New()
	started := time.Now()
	require.NoError(t, s.UpsertRun(context.Background(), session.RunMeta{
		AgentID: "agent-1", RunID: "run-1", SessionID: "sess-1", StartedAt: started,
	}))

	err := s.UpsertRun(context.Background(), session.RunMeta{
		AgentID: "agent-1", RunID: "run-1", SessionID: "sess-1", StartedAt: started.Add(time.Hour),
	})
	require.Error(t, err)
}

func TestListRunsBySessionFiltersByStatus(t *testing.T) {
	s := inmem.New()
	require.NoError(t, s.UpsertRun(context.Background(), session.RunMeta{
		AgentID: "a1", RunID: "run-1", SessionID: "sess-1", Status: session.RunStatusRunning,
	}))
	require.NoError(t, s.UpsertRun(context.Background(), session.RunMeta{
		AgentID: "a1", RunID: "run-2", SessionID: "sess-1", Status: session.RunStatusCompleted,
	}))
	require.NoError(t, s.UpsertRun(context.Background(), session.RunMeta{
		AgentID: "a1", RunID: "run-3", SessionID: "sess-2", Status: session.RunStatusRunning,
	}))

	runs, err := s.ListRunsBySession(context.Background(), "sess-1", []session.RunStatus{session.RunStatusCompleted})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "run-2", runs[0].RunID)
}

func TestLoadRunMutationDoesNotAffectStore(t *testing.T) {
	s := inmem.New()
	require.NoError(t, s.UpsertRun(context.Background(), session.RunMeta{
		AgentID: "a1", RunID: "run-1", SessionID: "sess-1",
		Labels: map[string]string{"k": "v"},
	}))

	run, err := s.LoadRun(context.Background(), "run-1")
	require.NoError(t, err)
	run.Labels["k"] = "mutated"

	again, err := s.LoadRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, "v", again.Labels["k"], "LoadRun must return a defensive copy")
}
