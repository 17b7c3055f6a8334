// Package prompt is the turn engine's Message Builder (C9, spec §4.7): it
// assembles the system message (model-output contract, tool catalog), the
// caller's seed messages, and a HISTORY section summarizing prior turns,
// into the flat message list an LLM Adapter sends upstream.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/tool"
)

// Role mirrors the conversational roles every example-pack LLM SDK exposes
// (system/user/assistant), kept provider-agnostic here.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged message in the built prompt.
type Message struct {
	Role    Role
	Content string
}

// Options configures how Builder renders the system message and history
// (spec §6).
type Options struct {
	// EmitPublicStatus includes the StatusTitle/StatusDetails/NextStepHint/
	// ProgressPct contract fields in the model-output schema description.
	EmitPublicStatus bool
	// UseCentralizedSchemas renders one compact "(schema provided via
	// function-calling)" notice per tool instead of inlining each tool's full
	// JSON schema, for
	// providers where function-calling already carries the schema
	// out-of-band.
	UseCentralizedSchemas bool
	// MaxRecentTurns is how many of the most recent turns are rendered in
	// full; older turns collapse to a one-line summary.
	MaxRecentTurns int
	// EnableHistorySummarization turns on the one-line collapsing of older
	// turns. When false, all turns render in full (bounded only by
	// MaxToolOutputSize truncation).
	EnableHistorySummarization bool
	// MaxToolOutputSize truncates a rendered tool output past this many
	// bytes, replacing the remainder with a
	// {"truncated":true,"original_size":N,"preview":"..."} marker.
	MaxToolOutputSize int
}

// Builder renders AgentState into the message list sent to the LLM.
type Builder struct {
	Registry tool.Registry
	Opts     Options
}

// New constructs a Builder over reg using opts.
func New(reg tool.Registry, opts Options) *Builder {
	return &Builder{Registry: reg, Opts: opts}
}

// Build renders the full message list for state: system message (contract +
// catalog), seed messages in system -> assistant -> user order, then the
// HISTORY section (spec §4.7 steps 1-5).
func (b *Builder) Build(state *agent.AgentState) []Message {
	var msgs []Message
	msgs = append(msgs, Message{Role: RoleSystem, Content: b.systemMessage(state.Goal)})

	if state.AdditionalMessages != nil {
		for _, s := range state.AdditionalMessages.System {
			msgs = append(msgs, Message{Role: RoleSystem, Content: s})
		}
		for _, s := range state.AdditionalMessages.Assistant {
			msgs = append(msgs, Message{Role: RoleAssistant, Content: s})
		}
		for _, s := range state.AdditionalMessages.User {
			msgs = append(msgs, Message{Role: RoleUser, Content: s})
		}
	}

	if history := b.renderHistory(state.Turns); history != "" {
		msgs = append(msgs, Message{Role: RoleUser, Content: history})
	}
	return msgs
}

func (b *Builder) systemMessage(goal string) string {
	var sb strings.Builder
	sb.WriteString("You are an autonomous agent executing a single goal via a Reason/Act loop.\n")
	fmt.Fprintf(&sb, "Goal: %s\n\n", goal)
	sb.WriteString(b.outputContract())
	sb.WriteString("\n\n")
	sb.WriteString(b.toolCatalog())
	return sb.String()
}

func (b *Builder) outputContract() string {
	var sb strings.Builder
	sb.WriteString("Respond with a single JSON object with fields:\n")
	sb.WriteString(`  "thoughts": string, your private reasoning` + "\n")
	sb.WriteString(`  "action": one of "plan" | "tool_call" | "finish" | "retry"` + "\n")
	sb.WriteString(`  "action_input": {"tool": string, "params": object} for tool_call,` + "\n")
	sb.WriteString(`                  {"final": string} for finish,` + "\n")
	sb.WriteString(`                  {"summary": string} for plan/retry` + "\n")
	if b.Opts.EmitPublicStatus {
		sb.WriteString("Optionally include:\n")
		sb.WriteString(`  "status_title": string, <=60 chars` + "\n")
		sb.WriteString(`  "status_details": string, <=160 chars` + "\n")
		sb.WriteString(`  "next_step_hint": string` + "\n")
		sb.WriteString(`  "progress_pct": integer 0-100` + "\n")
	}
	return sb.String()
}

func (b *Builder) toolCatalog() string {
	if b.Registry == nil {
		return "No tools are available."
	}
	all := b.Registry.All()
	if len(all) == 0 {
		return "No tools are available."
	}
	var sb strings.Builder
	sb.WriteString("Available tools:\n")
	for _, d := range all {
		if b.Opts.UseCentralizedSchemas {
			fmt.Fprintf(&sb, "- %s: %s (schema provided via function-calling)\n", d.Name(), d.Description())
			continue
		}
		schema := d.ParamsSchema()
		if len(schema) == 0 {
			fmt.Fprintf(&sb, "- %s: %s (no params)\n", d.Name(), d.Description())
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n  params schema: %s\n", d.Name(), d.Description(), string(schema))
	}
	return sb.String()
}

// renderHistory renders a HISTORY section: the most recent MaxRecentTurns
// turns in full, older turns collapsed to one line each when
// EnableHistorySummarization is set (spec §4.7 step 5).
func (b *Builder) renderHistory(turns []*agent.AgentTurn) string {
	if len(turns) == 0 {
		return ""
	}
	cutoff := 0
	if b.Opts.EnableHistorySummarization && b.Opts.MaxRecentTurns > 0 && len(turns) > b.Opts.MaxRecentTurns {
		cutoff = len(turns) - b.Opts.MaxRecentTurns
	}

	var sb strings.Builder
	sb.WriteString("HISTORY:\n")
	for i, t := range turns {
		if i < cutoff {
			sb.WriteString(summarizeTurn(t))
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(b.renderTurn(t))
		sb.WriteString("\n")
	}
	return sb.String()
}

func summarizeTurn(t *agent.AgentTurn) string {
	switch {
	case t.ToolResult != nil:
		status := "ok"
		if !t.ToolResult.Success {
			status = "failed"
		}
		return fmt.Sprintf("turn %d: called %s -> %s", t.Index, t.ToolResult.Tool, status)
	case t.LLMMessage != nil && t.LLMMessage.Action == agent.ActionFinish:
		return fmt.Sprintf("turn %d: finished", t.Index)
	case t.LLMMessage != nil:
		return fmt.Sprintf("turn %d: %s", t.Index, t.LLMMessage.Action)
	default:
		return fmt.Sprintf("turn %d: (no decision recorded)", t.Index)
	}
}

func (b *Builder) renderTurn(t *agent.AgentTurn) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "turn %d:\n", t.Index)
	if t.LLMMessage != nil {
		fmt.Fprintf(&sb, "  decision: %s\n", t.LLMMessage.Action)
		if t.LLMMessage.ActionInput.Tool != "" {
			fmt.Fprintf(&sb, "  tool_call: %s(%v)\n", t.LLMMessage.ActionInput.Tool, t.LLMMessage.ActionInput.Params)
		}
		if t.LLMMessage.ActionInput.Final != "" {
			fmt.Fprintf(&sb, "  final: %s\n", t.LLMMessage.ActionInput.Final)
		}
	}
	if t.ToolResult != nil {
		sb.WriteString(b.renderResult(t.ToolResult))
	}
	for _, r := range t.ToolResults {
		sb.WriteString(b.renderResult(r))
	}
	return sb.String()
}

func (b *Builder) renderResult(r *agent.ToolExecutionResult) string {
	var out string
	switch v := r.Output.(type) {
	case string:
		out = v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			out = fmt.Sprintf("%v", v)
		} else {
			out = string(raw)
		}
	}
	if b.Opts.MaxToolOutputSize > 0 && len(out) > b.Opts.MaxToolOutputSize {
		preview := out[:b.Opts.MaxToolOutputSize]
		truncated, _ := json.Marshal(map[string]any{
			"truncated":     true,
			"original_size": len(out),
			"preview":       preview,
		})
		out = string(truncated)
	}
	status := "success"
	if !r.Success {
		status = "error: " + r.Error
	}
	return fmt.Sprintf("  tool_result (%s) [%s]: %s\n", r.Tool, status, out)
}
