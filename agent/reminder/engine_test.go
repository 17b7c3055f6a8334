package reminder_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentturn/agent/reminder"
)

func TestSnapshotOrdersSafetyBeforeGuidance(t *testing.T) {
	e := reminder.NewEngine()
	e.AddReminder("run-1", reminder.Reminder{ID: "guidance", Text: "be concise", Priority: reminder.TierGuidance})
	e.AddReminder("run-1", reminder.Reminder{ID: "safety", Text: "never delete prod", Priority: reminder.TierSafety})

	rems := e.Snapshot("run-1", 0)
	require.Len(t, rems, 2)
	require.Equal(t, "safety", rems[0].ID)
	require.Equal(t, "guidance", rems[1].ID)
}

func TestSnapshotEnforcesMaxPerRunForNonSafety(t *testing.T) {
	e := reminder.NewEngine()
	e.AddReminder("run-1", reminder.Reminder{ID: "once", Text: "x", Priority: reminder.TierGuidance, MaxPerRun: 1})

	first := e.Snapshot("run-1", 0)
	require.Len(t, first, 1)

	second := e.Snapshot("run-1", 1)
	require.Empty(t, second)
}

func TestSnapshotIgnoresMaxPerRunForSafety(t *testing.T) {
	e := reminder.NewEngine()
	e.AddReminder("run-1", reminder.Reminder{ID: "safety", Text: "x", Priority: reminder.TierSafety, MaxPerRun: 1})

	for turn := 0; turn < 5; turn++ {
		rems := e.Snapshot("run-1", turn)
		require.Len(t, rems, 1)
	}
}

// TestSnapshotRateLimitsByMinTurnsBetween keys Snapshot off the caller's own
// dense turn index (what the orchestrator derives from len(AgentState.Turns))
// rather than an internal call counter, so a gap in the turn sequence - as
// happens when a run is loaded mid-flight from a store - is honored exactly
// the same as a freshly started run.
func TestSnapshotRateLimitsByMinTurnsBetween(t *testing.T) {
	e := reminder.NewEngine()
	e.AddReminder("run-1", reminder.Reminder{ID: "r", Text: "x", MinTurnsBetween: 2})

	require.Len(t, e.Snapshot("run-1", 0), 1) // turn 0: emitted
	require.Empty(t, e.Snapshot("run-1", 1))  // turn 1: suppressed, delta 1 < 2
	require.Len(t, e.Snapshot("run-1", 2), 1) // turn 2: delta 2 >= 2, emits again
}

func TestSnapshotRateLimitHonorsResumedTurnIndex(t *testing.T) {
	e := reminder.NewEngine()
	e.AddReminder("run-2", reminder.Reminder{ID: "r", Text: "x", MinTurnsBetween: 3})

	// A run resumed from a store with 10 turns already recorded must rate
	// limit against turn 10, not against an Engine-local count starting at 0.
	require.Len(t, e.Snapshot("run-2", 10), 1)
	require.Empty(t, e.Snapshot("run-2", 11))
	require.Empty(t, e.Snapshot("run-2", 12))
	require.Len(t, e.Snapshot("run-2", 13), 1)
}

func TestRemoveReminderStopsFutureEmission(t *testing.T) {
	e := reminder.NewEngine()
	e.AddReminder("run-1", reminder.Reminder{ID: "r", Text: "x"})
	e.RemoveReminder("run-1", "r")

	require.Empty(t, e.Snapshot("run-1", 0))
}

func TestAddReminderPreservesCounterAcrossUpdate(t *testing.T) {
	e := reminder.NewEngine()
	e.AddReminder("run-1", reminder.Reminder{ID: "r", Text: "x", Priority: reminder.TierGuidance, MaxPerRun: 1})
	e.Snapshot("run-1", 0)

	e.AddReminder("run-1", reminder.Reminder{ID: "r", Text: "updated text", Priority: reminder.TierGuidance, MaxPerRun: 1})
	require.Empty(t, e.Snapshot("run-1", 1), "emission counter must survive a reminder configuration update")
}

func TestClearRunResetsState(t *testing.T) {
	e := reminder.NewEngine()
	e.AddReminder("run-1", reminder.Reminder{ID: "r", Text: "x", Priority: reminder.TierGuidance, MaxPerRun: 1})
	e.Snapshot("run-1", 0)
	e.ClearRun("run-1")

	require.Empty(t, e.Snapshot("run-1", 1), "clearing a run drops all its reminders")
}

func TestSnapshotUnknownRunReturnsNil(t *testing.T) {
	e := reminder.NewEngine()
	require.Nil(t, e.Snapshot("never-seen", 0))
}
