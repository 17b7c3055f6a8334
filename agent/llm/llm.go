// Package llm is the turn engine's LLM Adapter boundary (C10, spec §4.8): a
// provider-agnostic streaming interface every concrete adapter (Anthropic,
// OpenAI, Bedrock) normalizes its SDK's own event stream into, grounded on
// the example pack's model.Streamer/model.Chunk shape.
package llm

import (
	"context"

	"github.com/loopforge/agentturn/agent/prompt"
	"github.com/loopforge/agentturn/agent/tool"
)

// ChunkType enumerates the kinds of streamed events a Streamer emits.
type ChunkType string

const (
	ChunkTypeText          ChunkType = "text"
	ChunkTypeToolCall      ChunkType = "tool_call"
	ChunkTypeToolCallDelta ChunkType = "tool_call_delta"
	ChunkTypeUsage         ChunkType = "usage"
	ChunkTypeStop          ChunkType = "stop"
)

// Usage reports token accounting for one LLM call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Add returns the element-wise sum of u and delta.
func (u Usage) Add(delta Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + delta.InputTokens,
		OutputTokens: u.OutputTokens + delta.OutputTokens,
		TotalTokens:  u.TotalTokens + delta.TotalTokens,
	}
}

// ToolCall is a complete, provider-native function call surfaced mid-stream.
// Name may carry a provider-specific "functions." prefix that callers
// normalize away (spec §4.8, function-call normalization step).
type ToolCall struct {
	ID      string
	Name    string
	RawArgs []byte // raw JSON arguments, decoded with json.Number precision by the caller
}

// Chunk is one unit of a streamed LLM response. Exactly the fields relevant
// to Type are populated.
type Chunk struct {
	Type ChunkType

	TextDelta string

	ToolCall      ToolCall
	ToolCallDelta ToolCallDelta

	Usage Usage

	StopReason string
}

// ToolCallDelta carries an incremental fragment of a tool call's arguments
// while the provider is still streaming them.
type ToolCallDelta struct {
	ID        string
	Name      string
	ArgsDelta string
}

// Streamer is the normalized per-call handle every concrete adapter
// produces. Recv returns io.EOF once the stream is exhausted.
type Streamer interface {
	Recv() (Chunk, error)
	Close() error
}

// Request is the provider-agnostic input to an Adapter call.
type Request struct {
	Messages         []prompt.Message
	Tools            []tool.Descriptor
	UseFunctionCalls bool
	MaxTokens        int
}

// Adapter is the boundary every concrete LLM provider binding implements.
type Adapter interface {
	Stream(ctx context.Context, req Request) (Streamer, error)
}
