package inmem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/dedupe/inmem"
)

func TestSetThenGetRoundTrips(t *testing.T) {
	c := inmem.New()
	want := &agent.ToolExecutionResult{Tool: "add", Success: true, Output: 5}
	require.NoError(t, c.Set(context.Background(), "key-1", want, time.Minute))

	got, ok, err := c.Get(context.Background(), "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, want, got)
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	c := inmem.New()
	_, ok, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetExpiredEntryReturnsFalseAndEvicts(t *testing.T) {
	c := inmem.New()
	require.NoError(t, c.Set(context.Background(), "key-1", &agent.ToolExecutionResult{}, time.Nanosecond))
	time.Sleep(time.Millisecond)

	_, ok, err := c.Get(context.Background(), "key-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := inmem.New()
	want := &agent.ToolExecutionResult{Tool: "add"}
	require.NoError(t, c.Set(context.Background(), "key-1", want, 0))

	_, ok, err := c.Get(context.Background(), "key-1")
	require.NoError(t, err)
	require.True(t, ok)
}
