// Package reasoning holds the shared LLM-prompting plumbing the
// Chain-of-Thought (cot) and Tree-of-Thoughts (tot) reasoning engines (C12,
// spec §4.9) build on. The reasoning/selector package wires either engine
// (or both, for "hybrid") into the orchestrator.Reasoner seam consulted
// once at the start of a fresh run.
package reasoning

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/loopforge/agentturn/agent/events"
	"github.com/loopforge/agentturn/agent/llm"
	"github.com/loopforge/agentturn/agent/prompt"
	"github.com/loopforge/agentturn/agent/telemetry"
)

// Prompter issues one LLM call and returns its aggregated text response.
// Each Chain-of-Thought stage and each Tree-of-Thoughts node evaluation/
// expansion issues exactly one Prompt call (spec §4.9: "each stage
// suspends on the LLM"). Neither engine decodes native function-calls or
// Re/Act envelopes here — a stage response is the engine's own small JSON
// shape, not a agent.ModelMessage.
type Prompter interface {
	Prompt(ctx context.Context, system, user string) (string, error)
}

// LLMPrompter is the default Prompter: a single-shot, non-function-calling
// call to an llm.Adapter, carrying the same per-call deadline and
// LLMCallStarted/LLMCallCompleted pairing guarantee as the main
// comm.Communicator (spec §4.6, §4.9), just without the Re/Act decode step
// a turn-loop decision needs.
type LLMPrompter struct {
	Adapter llm.Adapter
	Bus     events.Bus
	Logger  telemetry.Logger
	Timeout time.Duration
	AgentID string
}

// NewLLMPrompter constructs an LLMPrompter. bus and logger may be nil.
func NewLLMPrompter(adapter llm.Adapter, bus events.Bus, logger telemetry.Logger, timeout time.Duration, agentID string) *LLMPrompter {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &LLMPrompter{Adapter: adapter, Bus: bus, Logger: logger, Timeout: timeout, AgentID: agentID}
}

// Prompt implements Prompter. Reasoning-stage calls are not part of the
// turn log, so they are published with TurnIndex -1 — subscribers that key
// off TurnIndex to correlate with AgentState.Turns can use that as the
// "not a turn" sentinel.
func (p *LLMPrompter) Prompt(ctx context.Context, system, user string) (string, error) {
	p.publish(ctx, events.NewLLMCallStarted(p.AgentID, -1))
	start := time.Now()
	text, err := p.prompt(ctx, system, user)
	p.publish(ctx, events.NewLLMCallCompleted(p.AgentID, -1, err, time.Since(start)))
	return text, err
}

func (p *LLMPrompter) prompt(ctx context.Context, system, user string) (string, error) {
	callCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	messages := []prompt.Message{
		{Role: prompt.RoleSystem, Content: system},
		{Role: prompt.RoleUser, Content: user},
	}
	streamer, err := p.Adapter.Stream(callCtx, llm.Request{Messages: messages})
	if err != nil {
		return "", err
	}
	agg, _, err := llm.Aggregate(streamer, nil)
	if err != nil {
		return "", err
	}
	return agg.Text, nil
}

func (p *LLMPrompter) publish(ctx context.Context, evt events.Event) {
	if p.Bus == nil {
		return
	}
	if err := p.Bus.Publish(ctx, evt); err != nil {
		p.Logger.Warn(ctx, "event subscriber error", "event", evt.Kind(), "error", err.Error())
	}
}

// DecodeJSON tolerantly parses a reasoning stage's JSON response into v,
// stripping a markdown code fence and any leading/trailing prose around
// the first top-level JSON object first. Both cot and tot stage prompts
// instruct the model to respond with a single JSON object, so this mirrors
// (a simplified form of) comm's Re/Act tolerance without pulling in comm's
// unrelated ModelMessage schema.
func DecodeJSON(text string, v any) error {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	start := strings.IndexByte(clean, '{')
	if start < 0 {
		return json.Unmarshal([]byte(clean), v)
	}
	end := matchingBrace(clean, start)
	if end < 0 {
		return json.Unmarshal([]byte(clean[start:]), v)
	}
	return json.Unmarshal([]byte(clean[start:end+1]), v)
}

// matchingBrace returns the index of the '}' matching the '{' at open,
// respecting nested braces and JSON string literals.
func matchingBrace(s string, open int) int {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
