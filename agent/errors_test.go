package agent_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentturn/agent"
)

func TestKindOfExtractsWrappedKind(t *testing.T) {
	err := agent.NewError(agent.ErrKindToolTimeout, "tool took too long", agent.ErrCancelled)
	require.Equal(t, agent.ErrKindToolTimeout, agent.KindOf(err))
}

func TestKindOfUnwrapsThroughErrorsJoin(t *testing.T) {
	base := agent.NewError(agent.ErrKindStateSaveFailed, "save failed", nil)
	wrapped := errors.Join(base)
	require.Equal(t, agent.ErrKindStateSaveFailed, agent.KindOf(wrapped))
}

func TestKindOfReturnsEmptyForPlainError(t *testing.T) {
	require.Equal(t, agent.ErrorKind(""), agent.KindOf(errors.New("plain")))
}

func TestKindOfReturnsEmptyForNil(t *testing.T) {
	require.Equal(t, agent.ErrorKind(""), agent.KindOf(nil))
}

func TestErrorMessageIncludesCauseWhenPresent(t *testing.T) {
	cause := errors.New("boom")
	err := agent.NewError(agent.ErrKindToolError, "invoking add", cause)
	require.Contains(t, err.Error(), "boom")
	require.Contains(t, err.Error(), "invoking add")
}

func TestErrorMessageOmitsCauseWhenNil(t *testing.T) {
	err := agent.NewError(agent.ErrKindMaxTurnsExceeded, "turn budget exhausted", nil)
	require.Equal(t, "max_turns_exceeded: turn budget exhausted", err.Error())
}

func TestErrorsIsMatchesWrappedCause(t *testing.T) {
	err := agent.NewError(agent.ErrKindCancelled, "cancelled", agent.ErrCancelled)
	require.ErrorIs(t, err, agent.ErrCancelled)
}
