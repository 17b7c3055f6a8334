package llm

import (
	"errors"
	"io"
	"strings"
)

// AggregateResult is the fully-drained outcome of one Streamer.
type AggregateResult struct {
	// Text accumulates streamed text deltas in order.
	Text string
	// ToolCalls captures any complete tool calls surfaced mid-stream
	// (native function-calling path).
	ToolCalls []ToolCall
	// Usage aggregates every usage chunk received.
	Usage Usage
	// StopReason records the provider's stop reason, if emitted.
	StopReason string
}

// OnChunk, when non-nil, is invoked once per chunk for callers that want to
// forward streaming deltas (e.g. as LLMChunkReceived events) without
// re-implementing the drain loop.
type OnChunk func(Chunk)

// Aggregate drains streamer to completion (or until it errors) and returns
// the accumulated result. Partial tool-call argument deltas are assembled
// by the caller driving the orchestrator's JSON decode path, not here —
// Aggregate only concatenates the raw delta strings into pendingToolArgs so
// callers can finish decoding once the stream closes.
func Aggregate(streamer Streamer, onChunk OnChunk) (AggregateResult, map[string]*strings.Builder, error) {
	var result AggregateResult
	pending := map[string]*strings.Builder{}

	defer streamer.Close()

	for {
		chunk, err := streamer.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return result, pending, err
		}
		if onChunk != nil {
			onChunk(chunk)
		}
		switch chunk.Type {
		case ChunkTypeText:
			result.Text += chunk.TextDelta
		case ChunkTypeToolCall:
			result.ToolCalls = append(result.ToolCalls, chunk.ToolCall)
		case ChunkTypeToolCallDelta:
			b, ok := pending[chunk.ToolCallDelta.ID]
			if !ok {
				b = &strings.Builder{}
				pending[chunk.ToolCallDelta.ID] = b
			}
			b.WriteString(chunk.ToolCallDelta.ArgsDelta)
		case ChunkTypeUsage:
			result.Usage = result.Usage.Add(chunk.Usage)
		case ChunkTypeStop:
			result.StopReason = chunk.StopReason
		}
	}
	return result, pending, nil
}
