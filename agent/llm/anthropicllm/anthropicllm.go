// Package anthropicllm adapts github.com/anthropics/anthropic-sdk-go's
// Messages API to the llm.Adapter interface, grounded on the example pack's
// features/model/anthropic client/stream adapter.
package anthropicllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/loopforge/agentturn/agent/llm"
	"github.com/loopforge/agentturn/agent/prompt"
	"github.com/loopforge/agentturn/agent/tool"
)

// MessagesClient is the subset of *sdk.MessageService this adapter needs,
// satisfied by the real client or a test double.
type MessagesClient interface {
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Adapter implements llm.Adapter on top of Anthropic Claude Messages.
type Adapter struct {
	Messages  MessagesClient
	Model     string
	MaxTokens int
}

// New constructs an Adapter from an API key using the SDK's default HTTP
// client configuration.
func New(apiKey, model string, maxTokens int) *Adapter {
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return &Adapter{Messages: &c.Messages, Model: model, MaxTokens: maxTokens}
}

// Stream implements llm.Adapter.
func (a *Adapter) Stream(ctx context.Context, req llm.Request) (llm.Streamer, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropicllm: at least one message is required")
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.Model),
		MaxTokens: int64(a.MaxTokens),
	}
	msgs, system := encodeMessages(req.Messages)
	params.Messages = msgs
	if len(system) > 0 {
		params.System = system
	}
	if req.UseFunctionCalls {
		toolParams, err := encodeTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("anthropicllm: encode tools: %w", err)
		}
		params.Tools = toolParams
	}

	stream := a.Messages.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropicllm: start stream: %w", err)
	}
	return newStreamer(ctx, stream), nil
}

func encodeMessages(msgs []prompt.Message) ([]sdk.MessageParam, []sdk.TextBlockParam) {
	var out []sdk.MessageParam
	var system []sdk.TextBlockParam
	for _, m := range msgs {
		switch m.Role {
		case prompt.RoleSystem:
			system = append(system, sdk.TextBlockParam{Text: m.Content})
		case prompt.RoleUser:
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case prompt.RoleAssistant:
			out = append(out, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	return out, system
}

func encodeTools(descs []tool.Descriptor) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(descs))
	for _, d := range descs {
		var schema map[string]any
		if raw := d.ParamsSchema(); len(raw) > 0 {
			if err := json.Unmarshal(raw, &schema); err != nil {
				return nil, fmt.Errorf("tool %s: %w", d.Name(), err)
			}
		}
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: schema}, d.Name())
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(d.Description())
		}
		out = append(out, u)
	}
	return out, nil
}

type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[sdk.MessageStreamEventUnion]
	chunks chan llm.Chunk
	err    error
}

func newStreamer(ctx context.Context, stream *ssestream.Stream[sdk.MessageStreamEventUnion]) *streamer {
	cctx, cancel := context.WithCancel(ctx)
	s := &streamer{ctx: cctx, cancel: cancel, stream: stream, chunks: make(chan llm.Chunk, 32)}
	go s.run()
	return s
}

func (s *streamer) run() {
	defer close(s.chunks)
	defer s.stream.Close()

	var currentToolID, currentToolName string
	for s.stream.Next() {
		event := s.stream.Current()
		switch event.Type {
		case "content_block_start":
			if tu := event.ContentBlock.AsToolUse(); tu.Type == "tool_use" {
				currentToolID, currentToolName = tu.ID, tu.Name
			}
		case "content_block_delta":
			if d := event.Delta.AsTextDelta(); d.Type == "text_delta" && d.Text != "" {
				s.emit(llm.Chunk{Type: llm.ChunkTypeText, TextDelta: d.Text})
			}
			if d := event.Delta.AsInputJSONDelta(); d.Type == "input_json_delta" && d.PartialJSON != "" {
				s.emit(llm.Chunk{Type: llm.ChunkTypeToolCallDelta, ToolCallDelta: llm.ToolCallDelta{
					ID: currentToolID, Name: currentToolName, ArgsDelta: d.PartialJSON,
				}})
			}
		case "message_delta":
			if string(event.Delta.StopReason) != "" {
				s.emit(llm.Chunk{Type: llm.ChunkTypeStop, StopReason: string(event.Delta.StopReason)})
			}
			if u := event.Usage; u.OutputTokens != 0 {
				s.emit(llm.Chunk{Type: llm.ChunkTypeUsage, Usage: llm.Usage{OutputTokens: int(u.OutputTokens)}})
			}
		case "message_start":
			if u := event.Message.Usage; u.InputTokens != 0 {
				s.emit(llm.Chunk{Type: llm.ChunkTypeUsage, Usage: llm.Usage{InputTokens: int(u.InputTokens)}})
			}
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
