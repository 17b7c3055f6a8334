// Package comm is the turn engine's LLM Communicator (C11, spec §4.9): it
// wraps an llm.Adapter with a per-call deadline, aggregates the streamed
// response, tolerantly decodes it (native function-call or Re/Act JSON) into
// an agent.ModelMessage, and guarantees a matching LLMCallCompleted event for
// every LLMCallStarted even when the call errors.
package comm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/events"
	"github.com/loopforge/agentturn/agent/llm"
	"github.com/loopforge/agentturn/agent/prompt"
	"github.com/loopforge/agentturn/agent/telemetry"
	"github.com/loopforge/agentturn/agent/tool"
)

// Communicator drives one LLM call end to end.
type Communicator struct {
	Adapter llm.Adapter
	Bus     events.Bus
	Logger  telemetry.Logger
	Timeout time.Duration
}

// New constructs a Communicator. bus may be nil to skip event emission.
func New(adapter llm.Adapter, bus events.Bus, logger telemetry.Logger, timeout time.Duration) *Communicator {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Communicator{Adapter: adapter, Bus: bus, Logger: logger, Timeout: timeout}
}

// Call issues one LLM call for agentID/turnIndex, using messages and tools.
// It always publishes a matching LLMCallCompleted for the LLMCallStarted it
// publishes, even when it returns an error (spec §4.9 pairing guarantee).
func (c *Communicator) Call(ctx context.Context, agentID string, turnIndex int, messages []prompt.Message, tools []tool.Descriptor, useFunctionCalls bool) (*agent.ModelMessage, llm.Usage, error) {
	c.publish(ctx, events.NewLLMCallStarted(agentID, turnIndex))

	start := time.Now()
	msg, usage, err := c.call(ctx, agentID, turnIndex, messages, tools, useFunctionCalls)
	c.publish(ctx, events.NewLLMCallCompleted(agentID, turnIndex, err, time.Since(start)))
	return msg, usage, err
}

func (c *Communicator) call(ctx context.Context, agentID string, turnIndex int, messages []prompt.Message, toolDescs []tool.Descriptor, useFunctionCalls bool) (*agent.ModelMessage, llm.Usage, error) {
	callCtx := ctx
	var cancel context.CancelFunc
	if c.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	streamer, err := c.Adapter.Stream(callCtx, llm.Request{
		Messages:         messages,
		Tools:            toolDescs,
		UseFunctionCalls: useFunctionCalls,
	})
	if err != nil {
		return nil, llm.Usage{}, classifyErr(ctx, callCtx, err)
	}

	onChunk := func(ch llm.Chunk) {
		if ch.Type == llm.ChunkTypeText && ch.TextDelta != "" {
			c.publish(ctx, events.NewLLMChunkReceived(agentID, turnIndex, ch.TextDelta))
		}
	}

	agg, pendingArgs, err := llm.Aggregate(streamer, onChunk)
	if err != nil {
		return nil, llm.Usage{}, classifyErr(ctx, callCtx, err)
	}

	if len(agg.ToolCalls) > 0 {
		msg, err := decodeNativeToolCall(agg.ToolCalls[0])
		return msg, agg.Usage, err
	}
	if len(pendingArgs) > 0 {
		for id, b := range pendingArgs {
			msg, err := decodeNativeToolCall(llm.ToolCall{ID: id, RawArgs: []byte(b.String())})
			return msg, agg.Usage, err
		}
	}

	msg, err := decodeReActJSON(agg.Text)
	return msg, agg.Usage, err
}

func classifyErr(ctx, callCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return agent.NewError(agent.ErrKindCancelled, "llm call cancelled by caller", err)
	}
	if callCtx.Err() != nil {
		return agent.NewError(agent.ErrKindLLMTimeout, "llm call deadline exceeded", err)
	}
	return agent.NewError(agent.ErrKindLLMCallFailed, "llm adapter call failed", err)
}

// decodeNativeToolCall builds a ModelMessage from a provider-native function
// call, normalizing away a leading "functions." namespace prefix some
// providers add to the tool name.
func decodeNativeToolCall(call llm.ToolCall) (*agent.ModelMessage, error) {
	name := strings.TrimPrefix(call.Name, "functions.")

	var params map[string]any
	if len(call.RawArgs) > 0 {
		dec := json.NewDecoder(strings.NewReader(string(call.RawArgs)))
		dec.UseNumber()
		if err := dec.Decode(&params); err != nil {
			return nil, agent.NewError(agent.ErrKindFunctionArgsInvalid, "decode function call arguments", err)
		}
	}
	return &agent.ModelMessage{
		Action: agent.ActionToolCall,
		ActionInput: agent.ActionInput{
			Tool:   name,
			Params: params,
		},
	}, nil
}

// reActEnvelope mirrors the output contract documented by package prompt.
type reActEnvelope struct {
	Thoughts      string `json:"thoughts"`
	Action        string `json:"action"`
	ActionInput   json.RawMessage `json:"action_input"`
	StatusTitle   string `json:"status_title"`
	StatusDetails string `json:"status_details"`
	NextStepHint  string `json:"next_step_hint"`
	ProgressPct   *int   `json:"progress_pct"`
}

type reActActionInput struct {
	Tool    string         `json:"tool"`
	Params  map[string]any `json:"params"`
	Final   string         `json:"final"`
	Summary string         `json:"summary"`
}

// decodeReActJSON tolerantly parses a Re/Act-style JSON response, stripping
// common wrapping artifacts (markdown code fences, leading/trailing prose)
// before decoding (spec §4.9).
func decodeReActJSON(text string) (*agent.ModelMessage, error) {
	clean := stripJSONFences(text)

	var env reActEnvelope
	dec := json.NewDecoder(strings.NewReader(clean))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, agent.NewError(agent.ErrKindLLMParseError, "decode Re/Act response", err)
	}

	var ai reActActionInput
	if len(env.ActionInput) > 0 {
		adec := json.NewDecoder(strings.NewReader(string(env.ActionInput)))
		adec.UseNumber()
		if err := adec.Decode(&ai); err != nil {
			return nil, agent.NewError(agent.ErrKindLLMParseError, "decode Re/Act action_input", err)
		}
	}

	progress := -1
	if env.ProgressPct != nil {
		progress = *env.ProgressPct
	}
	return &agent.ModelMessage{
		Thoughts: env.Thoughts,
		Action:   agent.Action(env.Action),
		ActionInput: agent.ActionInput{
			Tool:    ai.Tool,
			Params:  ai.Params,
			Final:   ai.Final,
			Summary: ai.Summary,
		},
		StatusTitle:   env.StatusTitle,
		StatusDetails: env.StatusDetails,
		NextStepHint:  env.NextStepHint,
		ProgressPct:   progress,
	}, nil
}

// stripJSONFences removes a leading/trailing ```json ... ``` or ``` ... ```
// fence and surrounding whitespace, and trims any leading prose before the
// first '{' and trailing prose after the matching top-level '}' when the
// response embeds the JSON object inside free text.
func stripJSONFences(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	end := matchingBrace(s, start)
	if end < 0 {
		return s[start:]
	}
	return s[start : end+1]
}

// matchingBrace returns the index of the '}' matching the '{' at open,
// respecting nested braces and JSON string literals (so a brace inside a
// quoted string does not confuse depth tracking).
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

func (c *Communicator) publish(ctx context.Context, evt events.Event) {
	if c.Bus == nil {
		return
	}
	if err := c.Bus.Publish(ctx, evt); err != nil {
		c.Logger.Warn(ctx, "event subscriber error", "event", evt.Kind(), "error", err.Error())
	}
}
