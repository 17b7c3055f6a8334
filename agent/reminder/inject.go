package reminder

import (
	"strings"

	"github.com/loopforge/agentturn/agent/prompt"
)

// InjectMessages returns a copy of messages with rems injected as additional
// system messages. AttachmentRunStart reminders merge into the first
// message (always the Message Builder's system message, per prompt.Build)
// by prepending text; AttachmentTurn reminders are inserted as a new system
// message immediately before the HISTORY message (the last message Build
// produces), or appended at the end when there is no history yet.
//
// Reminders are expected to already be ordered by priority (Engine.Snapshot
// does this); InjectMessages preserves the relative order it receives.
func InjectMessages(messages []prompt.Message, rems []Reminder) []prompt.Message {
	if len(rems) == 0 || len(messages) == 0 {
		return messages
	}

	var runStart, perTurn []Reminder
	for _, r := range rems {
		if r.Attachment == AttachmentRunStart {
			runStart = append(runStart, r)
			continue
		}
		perTurn = append(perTurn, r)
	}

	out := append([]prompt.Message(nil), messages...)
	if len(runStart) > 0 {
		out = injectAtRunStart(out, runStart)
	}
	if len(perTurn) > 0 {
		out = injectBeforeHistory(out, perTurn)
	}
	return out
}

func injectAtRunStart(msgs []prompt.Message, rems []Reminder) []prompt.Message {
	text := combineText(rems)
	if text == "" || len(msgs) == 0 {
		return msgs
	}
	out := append([]prompt.Message(nil), msgs...)
	if out[0].Role == prompt.RoleSystem {
		out[0].Content = text + "\n\n" + out[0].Content
		return out
	}
	return append([]prompt.Message{{Role: prompt.RoleSystem, Content: text}}, out...)
}

// injectBeforeHistory inserts a new system message immediately before the
// last message in msgs — the HISTORY message prompt.Build appends last, if
// any turns have run yet — or appends at the end otherwise.
func injectBeforeHistory(msgs []prompt.Message, rems []Reminder) []prompt.Message {
	text := combineText(rems)
	if text == "" {
		return msgs
	}
	m := prompt.Message{Role: prompt.RoleSystem, Content: text}
	if !strings.HasPrefix(msgs[len(msgs)-1].Content, "HISTORY:") {
		return append(append([]prompt.Message(nil), msgs...), m)
	}
	out := make([]prompt.Message, 0, len(msgs)+1)
	out = append(out, msgs[:len(msgs)-1]...)
	out = append(out, m, msgs[len(msgs)-1])
	return out
}

func combineText(rems []Reminder) string {
	var out string
	for i := range rems {
		t := formatReminderText(rems[i])
		if t == "" {
			continue
		}
		if out == "" {
			out = t
			continue
		}
		out += "\n\n" + t
	}
	return out
}

// formatReminderText wraps r.Text in a <system-reminder> block, unless it is
// already tagged.
func formatReminderText(r Reminder) string {
	t := strings.TrimSpace(r.Text)
	if t == "" {
		return ""
	}
	if strings.Contains(t, "<system-reminder>") {
		return t
	}
	return "<system-reminder>" + t + "</system-reminder>"
}
