package inmem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentturn/agent/runlog"
	"github.com/loopforge/agentturn/agent/runlog/inmem"
)

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	s := inmem.New()
	e1 := &runlog.Event{RunID: "run-1"}
	e2 := &runlog.Event{RunID: "run-1"}

	require.NoError(t, s.Append(context.Background(), e1))
	require.NoError(t, s.Append(context.Background(), e2))
	require.Equal(t, "1", e1.ID)
	require.Equal(t, "2", e2.ID)
}

func TestAppendRejectsMissingRunID(t *testing.T) {
	s := inmem.New()
	err := s.Append(context.Background(), &runlog.Event{})
	require.Error(t, err)
}

func TestListPagesForward(t *testing.T) {
	s := inmem.New()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(context.Background(), &runlog.Event{RunID: "run-1", TurnIndex: i}))
	}

	page1, err := s.List(context.Background(), "run-1", "", 2)
	require.NoError(t, err)
	require.Len(t, page1.Events, 2)
	require.Equal(t, 0, page1.Events[0].TurnIndex)
	require.Equal(t, 1, page1.Events[1].TurnIndex)
	require.NotEmpty(t, page1.NextCursor)

	page2, err := s.List(context.Background(), "run-1", page1.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Events, 2)
	require.Equal(t, 2, page2.Events[0].TurnIndex)
	require.Equal(t, 3, page2.Events[1].TurnIndex)

	page3, err := s.List(context.Background(), "run-1", page2.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page3.Events, 1)
	require.Empty(t, page3.NextCursor, "the final page has no further cursor")
}

func TestListUnknownRunReturnsEmptyPage(t *testing.T) {
	s := inmem.New()
	page, err := s.List(context.Background(), "missing", "", 10)
	require.NoError(t, err)
	require.Empty(t, page.Events)
}

func TestListRejectsInvalidCursor(t *testing.T) {
	s := inmem.New()
	require.NoError(t, s.Append(context.Background(), &runlog.Event{RunID: "run-1"}))

	_, err := s.List(context.Background(), "run-1", "not-a-number", 10)
	require.Error(t, err)
}

func TestListRejectsNonPositiveLimit(t *testing.T) {
	s := inmem.New()
	_, err := s.List(context.Background(), "run-1", "", 0)
	require.Error(t, err)
}
