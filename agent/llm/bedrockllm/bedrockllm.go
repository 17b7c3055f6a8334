// Package bedrockllm adapts the AWS Bedrock Runtime ConverseStream API to
// the llm.Adapter interface, grounded on the example pack's
// features/model/bedrock stream adapter.
package bedrockllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/document"

	"github.com/loopforge/agentturn/agent/llm"
	"github.com/loopforge/agentturn/agent/prompt"
	"github.com/loopforge/agentturn/agent/tool"
)

// ConverseStreamClient is the subset of *bedrockruntime.Client this adapter
// needs.
type ConverseStreamClient interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Adapter implements llm.Adapter on top of Bedrock ConverseStream.
type Adapter struct {
	Client  ConverseStreamClient
	ModelID string
}

// New constructs an Adapter from an already-configured bedrockruntime
// client and model identifier (e.g. "anthropic.claude-3-5-sonnet-...").
func New(client *bedrockruntime.Client, modelID string) *Adapter {
	return &Adapter{Client: client, ModelID: modelID}
}

// Stream implements llm.Adapter.
func (a *Adapter) Stream(ctx context.Context, req llm.Request) (llm.Streamer, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrockllm: at least one message is required")
	}
	msgs, system := encodeMessages(req.Messages)
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(a.ModelID),
		Messages: msgs,
		System:   system,
	}
	if req.UseFunctionCalls {
		toolConfig, err := encodeToolConfig(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("bedrockllm: encode tools: %w", err)
		}
		input.ToolConfig = toolConfig
	}

	out, err := a.Client.ConverseStream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrockllm: converse stream: %w", err)
	}
	return newStreamer(ctx, out.GetStream()), nil
}

func encodeMessages(msgs []prompt.Message) ([]brtypes.Message, []brtypes.SystemContentBlock) {
	var out []brtypes.Message
	var system []brtypes.SystemContentBlock
	for _, m := range msgs {
		switch m.Role {
		case prompt.RoleSystem:
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Content})
		case prompt.RoleUser:
			out = append(out, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		case prompt.RoleAssistant:
			out = append(out, brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		}
	}
	return out, system
}

func encodeToolConfig(descs []tool.Descriptor) (*brtypes.ToolConfiguration, error) {
	if len(descs) == 0 {
		return nil, nil
	}
	tools := make([]brtypes.Tool, 0, len(descs))
	for _, d := range descs {
		var schema map[string]any
		if raw := d.ParamsSchema(); len(raw) > 0 {
			if err := json.Unmarshal(raw, &schema); err != nil {
				return nil, fmt.Errorf("tool %s: %w", d.Name(), err)
			}
		}
		tools = append(tools, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        aws.String(d.Name()),
				Description: aws.String(d.Description()),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}
	return &brtypes.ToolConfiguration{Tools: tools}, nil
}

type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	events *bedrockruntime.ConverseStreamEventStream
	chunks chan llm.Chunk
	err    error
}

func newStreamer(ctx context.Context, events *bedrockruntime.ConverseStreamEventStream) *streamer {
	cctx, cancel := context.WithCancel(ctx)
	s := &streamer{ctx: cctx, cancel: cancel, events: events, chunks: make(chan llm.Chunk, 32)}
	go s.run()
	return s
}

func (s *streamer) run() {
	defer close(s.chunks)
	defer s.events.Close()

	var currentToolID, currentToolName string
	for event := range s.events.Events() {
		switch e := event.(type) {
		case *brtypes.ConverseStreamOutputMemberContentBlockStart:
			if ts, ok := e.Value.Start.(*brtypes.ContentBlockStartMemberToolUse); ok {
				currentToolID = aws.ToString(ts.Value.ToolUseId)
				currentToolName = aws.ToString(ts.Value.Name)
			}
		case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
			switch d := e.Value.Delta.(type) {
			case *brtypes.ContentBlockDeltaMemberText:
				if d.Value != "" {
					s.emit(llm.Chunk{Type: llm.ChunkTypeText, TextDelta: d.Value})
				}
			case *brtypes.ContentBlockDeltaMemberToolUse:
				if d.Value.Input != nil {
					s.emit(llm.Chunk{Type: llm.ChunkTypeToolCallDelta, ToolCallDelta: llm.ToolCallDelta{
						ID: currentToolID, Name: currentToolName, ArgsDelta: aws.ToString(d.Value.Input),
					}})
				}
			}
		case *brtypes.ConverseStreamOutputMemberMessageStop:
			s.emit(llm.Chunk{Type: llm.ChunkTypeStop, StopReason: string(e.Value.StopReason)})
		case *brtypes.ConverseStreamOutputMemberMetadata:
			if u := e.Value.Usage; u != nil {
				s.emit(llm.Chunk{Type: llm.ChunkTypeUsage, Usage: llm.Usage{
					InputTokens:  int(aws.ToInt32(u.InputTokens)),
					OutputTokens: int(aws.ToInt32(u.OutputTokens)),
					TotalTokens:  int(aws.ToInt32(u.TotalTokens)),
				}})
			}
		}
	}
	if err := s.events.Err(); err != nil {
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
