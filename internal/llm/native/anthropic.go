// Package native adapts LLM backends with their own wire protocol
// (Anthropic, Google Gemini, AWS Bedrock) onto the same StreamEvent
// union the OpenAI-compatible backend produces, so the agent runtime,
// fallback chain, and circuit breaker never need to know which wire
// format actually served a round.
package native

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/forgewing/agentcore/internal/llm"
	"github.com/forgewing/agentcore/internal/provider"
	"github.com/forgewing/agentcore/pkg/models"
)

// AnthropicBackend implements llm.Backend against the native
// Anthropic Messages streaming API, in the style of an
// AnthropicProvider.processStream switch over
// message_start/content_block_start/content_block_delta/message_stop.
type AnthropicBackend struct{}

func (AnthropicBackend) Stream(ctx context.Context, d provider.Descriptor, messages []models.Message, tools []llm.ToolSchema, opts llm.Options) (<-chan models.StreamEvent, error) {
	client := anthropic.NewClient(option.WithAPIKey(d.APIKey), option.WithBaseURL(d.BaseURL))

	var system string
	var msgs []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			system = m.Content
		case models.RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case models.RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case models.RoleTool:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}

	var toolParams []anthropic.ToolUnionParam
	for _, t := range tools {
		toolParams = append(toolParams, anthropic.ToolUnionParamOfTool(anthropic.ToolInputSchemaParam{
			Properties: t.Parameters["properties"],
		}, t.Name))
	}

	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(d.ModelID),
		MaxTokens: maxTokens,
		Messages:  msgs,
		Tools:     toolParams,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := client.Messages.NewStreaming(ctx, params)

	out := make(chan models.StreamEvent)
	go func() {
		defer close(out)
		var toolIndex int
		var inputTokens, outputTokens int64
		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "message_start":
				ms := event.AsMessageStart()
				if ms.Message.Usage.InputTokens > 0 {
					inputTokens = ms.Message.Usage.InputTokens
				}
			case "content_block_start":
				cbs := event.AsContentBlockStart()
				if cbs.ContentBlock.Type == "tool_use" {
					tu := cbs.ContentBlock.AsToolUse()
					ev := models.StreamEvent{
						Kind:       models.EventToolCallPartial,
						Index:      toolIndex,
						ToolCallID: tu.ID,
						ToolName:   tu.Name,
					}
					toolIndex++
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			case "content_block_delta":
				cbd := event.AsContentBlockDelta()
				switch cbd.Delta.Type {
				case "text_delta":
					if cbd.Delta.Text != "" {
						select {
						case out <- models.ContentDeltaEvent(cbd.Delta.Text):
						case <-ctx.Done():
							return
						}
					}
				case "thinking_delta":
					if cbd.Delta.Thinking != "" {
						select {
						case out <- models.ReasoningDeltaEvent(cbd.Delta.Thinking):
						case <-ctx.Done():
							return
						}
					}
				case "input_json_delta":
					if cbd.Delta.PartialJSON != "" {
						select {
						case out <- models.StreamEvent{Kind: models.EventToolCallPartial, Index: toolIndex - 1, ArgsFrag: cbd.Delta.PartialJSON}:
						case <-ctx.Done():
							return
						}
					}
				}
			case "message_delta":
				md := event.AsMessageDelta()
				if md.Usage.OutputTokens > 0 {
					outputTokens = md.Usage.OutputTokens
				}
			case "message_stop":
				select {
				case out <- models.UsageEvent(inputTokens, outputTokens, inputTokens+outputTokens):
				case <-ctx.Done():
				}
				return
			case "error":
				select {
				case out <- models.ErrorEvent("malformed_stream", "anthropic stream error"):
				case <-ctx.Done():
				}
				return
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case out <- models.ErrorEvent("malformed_stream", err.Error()):
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}
