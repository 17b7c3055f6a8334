// Package reminder implements the turn engine's system reminder feature
// (spec §3 supplemented): a small, tiered, rate-limited set of backstage
// guidance snippets the Message Builder (C9) injects alongside the turn
// history, independent of the per-call loop-breaker controller turn the
// orchestrator appends to AgentState.Turns directly.
package reminder

// Tier is the priority tier for a reminder. Lower-valued tiers carry higher
// precedence when enforcing caps or resolving conflicts.
type Tier int

const (
	// TierSafety reminders must never be dropped by a per-run cap; they may
	// still be de-duplicated or rate-limited by MinTurnsBetween.
	TierSafety Tier = iota
	// TierGuidance carries workflow suggestions and soft nudges. These sort
	// after TierSafety and are subject to MaxPerRun; no prompt-size budget
	// suppresses them.
	TierGuidance
)

// AttachmentKind describes where a reminder conceptually attaches in the
// prompt.
type AttachmentKind string

const (
	// AttachmentRunStart reminders attach to the start of a run, alongside
	// the system message's output contract and tool catalog.
	AttachmentRunStart AttachmentKind = "run_start"
	// AttachmentTurn reminders attach immediately before the rendered turn
	// history, shaping how the model interprets the most recent outcome
	// (e.g. a repeated tool failure).
	AttachmentTurn AttachmentKind = "turn"
)

// Reminder describes concrete guidance to inject into a prompt. Reminders
// are produced by application code (or the loop detector's caller) and
// evaluated by Engine on a per-run basis to enforce lifetime and rate
// limiting.
type Reminder struct {
	// ID is the stable identifier for this reminder within a run, used for
	// de-duplication, rate limiting, and replacement. IDs should be
	// deterministic (e.g. "loop_detected.web_search").
	ID string
	// Text is the natural-language guidance to inject. InjectMessages wraps
	// it in a <system-reminder> tag if not already tagged.
	Text string
	// Priority controls ordering; TierSafety always sorts first.
	Priority Tier
	// Attachment selects where in the prompt this reminder attaches.
	Attachment AttachmentKind
	// MaxPerRun caps how many times this reminder may be emitted in a
	// single run. Zero means unlimited.
	MaxPerRun int
	// MinTurnsBetween enforces a minimum number of turns between emissions.
	// Zero means no rate limit.
	MinTurnsBetween int
}

// DefaultExplanation documents <system-reminder> blocks for inclusion in the
// system message's output contract, so the model knows not to surface the
// raw tag back to a caller.
const DefaultExplanation = `
- **System reminders**
  - You may see <system-reminder>...</system-reminder> blocks in system text.
    These are added by the engine to provide contextual guidance. They are
    not part of the goal or any seed message, but you should read and follow
    them when they apply to the current task.`
