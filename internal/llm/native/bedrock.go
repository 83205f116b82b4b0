package native

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/forgewing/agentcore/internal/llm"
	"github.com/forgewing/agentcore/internal/provider"
	"github.com/forgewing/agentcore/pkg/models"
)

// BedrockBackend implements llm.Backend against Bedrock's
// ConverseStream API, in the style of a BedrockProvider.processStream
// event-type switch over
// ContentBlockStart/ContentBlockDelta/ContentBlockStop/MessageStop.
type BedrockBackend struct{}

func (BedrockBackend) Stream(ctx context.Context, d provider.Descriptor, messages []models.Message, tools []llm.ToolSchema, opts llm.Options) (<-chan models.StreamEvent, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	client := bedrockruntime.NewFromConfig(awsCfg)

	var bedrockMsgs []types.Message
	var system []types.SystemContentBlock
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			system = append(system, &types.SystemContentBlockMemberText{Value: m.Content})
		case models.RoleUser:
			bedrockMsgs = append(bedrockMsgs, types.Message{Role: types.ConversationRoleUser, Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}}})
		case models.RoleAssistant:
			bedrockMsgs = append(bedrockMsgs, types.Message{Role: types.ConversationRoleAssistant, Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}}})
		case models.RoleTool:
			bedrockMsgs = append(bedrockMsgs, types.Message{Role: types.ConversationRoleUser, Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}}})
		}
	}

	req := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(d.ModelID),
		Messages: bedrockMsgs,
	}
	if len(system) > 0 {
		req.System = system
	}
	if opts.MaxTokens > 0 {
		req.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(opts.MaxTokens))}
	}

	stream, err := client.ConverseStream(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan models.StreamEvent)
	go func() {
		defer close(out)
		eventStream := stream.GetStream()
		defer eventStream.Close()

		toolIndex := -1
		var toolInput string
		var toolID, toolName string

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-eventStream.Events():
				if !ok {
					if err := eventStream.Err(); err != nil {
						select {
						case out <- models.ErrorEvent("malformed_stream", err.Error()):
						case <-ctx.Done():
						}
					}
					return
				}
				switch ev := event.(type) {
				case *types.ConverseStreamOutputMemberContentBlockStart:
					if toolUse, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
						toolIndex++
						toolID = aws.ToString(toolUse.Value.ToolUseId)
						toolName = aws.ToString(toolUse.Value.Name)
						toolInput = ""
						select {
						case out <- models.StreamEvent{Kind: models.EventToolCallPartial, Index: toolIndex, ToolCallID: toolID, ToolName: toolName}:
						case <-ctx.Done():
							return
						}
					}
				case *types.ConverseStreamOutputMemberContentBlockDelta:
					switch delta := ev.Value.Delta.(type) {
					case *types.ContentBlockDeltaMemberText:
						if delta.Value != "" {
							select {
							case out <- models.ContentDeltaEvent(delta.Value):
							case <-ctx.Done():
								return
							}
						}
					case *types.ContentBlockDeltaMemberToolUse:
						if delta.Value.Input != nil {
							toolInput += *delta.Value.Input
							select {
							case out <- models.StreamEvent{Kind: models.EventToolCallPartial, Index: toolIndex, ArgsFrag: *delta.Value.Input}:
							case <-ctx.Done():
								return
							}
						}
					}
				case *types.ConverseStreamOutputMemberMessageStop:
					return
				case *types.ConverseStreamOutputMemberMetadata:
					if ev.Value.Usage != nil {
						in := int64(aws.ToInt32(ev.Value.Usage.InputTokens))
						outTok := int64(aws.ToInt32(ev.Value.Usage.OutputTokens))
						select {
						case out <- models.UsageEvent(in, outTok, in+outTok):
						case <-ctx.Done():
							return
						}
					}
				}
			}
		}
	}()
	return out, nil
}
