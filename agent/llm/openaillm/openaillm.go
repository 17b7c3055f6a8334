// Package openaillm adapts github.com/openai/openai-go's Chat Completions
// streaming API to the llm.Adapter interface.
package openaillm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/loopforge/agentturn/agent/llm"
	"github.com/loopforge/agentturn/agent/prompt"
	"github.com/loopforge/agentturn/agent/tool"
)

// CompletionsClient is the subset of openai.ChatCompletionService this
// adapter needs.
type CompletionsClient interface {
	NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
}

// Adapter implements llm.Adapter on top of OpenAI Chat Completions.
type Adapter struct {
	Completions CompletionsClient
	Model       string
}

// New constructs an Adapter from an API key.
func New(apiKey, model string) *Adapter {
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return &Adapter{Completions: c.Chat.Completions, Model: model}
}

// Stream implements llm.Adapter.
func (a *Adapter) Stream(ctx context.Context, req llm.Request) (llm.Streamer, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openaillm: at least one message is required")
	}
	params := openai.ChatCompletionNewParams{
		Model:    a.Model,
		Messages: encodeMessages(req.Messages),
	}
	if req.UseFunctionCalls {
		params.Tools = encodeTools(req.Tools)
	}

	stream := a.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openaillm: start stream: %w", err)
	}
	return newStreamer(ctx, stream), nil
}

func encodeMessages(msgs []prompt.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case prompt.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case prompt.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case prompt.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		}
	}
	return out
}

func encodeTools(descs []tool.Descriptor) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(descs))
	for _, d := range descs {
		var params map[string]any
		if raw := d.ParamsSchema(); len(raw) > 0 {
			_ = json.Unmarshal(raw, &params)
		}
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        d.Name(),
				Description: openai.String(d.Description()),
				Parameters:  params,
			},
		})
	}
	return out
}

type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	chunks chan llm.Chunk
	err    error
}

func newStreamer(ctx context.Context, stream *ssestream.Stream[openai.ChatCompletionChunk]) *streamer {
	cctx, cancel := context.WithCancel(ctx)
	s := &streamer{ctx: cctx, cancel: cancel, stream: stream, chunks: make(chan llm.Chunk, 32)}
	go s.run()
	return s
}

func (s *streamer) run() {
	defer close(s.chunks)
	defer s.stream.Close()

	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			s.emit(llm.Chunk{Type: llm.ChunkTypeText, TextDelta: choice.Delta.Content})
		}
		for _, tc := range choice.Delta.ToolCalls {
			s.emit(llm.Chunk{Type: llm.ChunkTypeToolCallDelta, ToolCallDelta: llm.ToolCallDelta{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				ArgsDelta: tc.Function.Arguments,
			}})
		}
		if choice.FinishReason != "" {
			s.emit(llm.Chunk{Type: llm.ChunkTypeStop, StopReason: choice.FinishReason})
		}
		if u := chunk.Usage; u.TotalTokens != 0 {
			s.emit(llm.Chunk{Type: llm.ChunkTypeUsage, Usage: llm.Usage{
				InputTokens:  int(u.PromptTokens),
				OutputTokens: int(u.CompletionTokens),
				TotalTokens:  int(u.TotalTokens),
			}})
		}
	}
	if err := s.stream.Err(); err != nil {
		s.err = err
	}
}

func (s *streamer) emit(c llm.Chunk) {
	select {
	case s.chunks <- c:
	case <-s.ctx.Done():
	}
}

func (s *streamer) Recv() (llm.Chunk, error) {
	c, ok := <-s.chunks
	if ok {
		return c, nil
	}
	if s.err != nil {
		return llm.Chunk{}, s.err
	}
	return llm.Chunk{}, io.EOF
}

func (s *streamer) Close() error {
	s.cancel()
	return nil
}
