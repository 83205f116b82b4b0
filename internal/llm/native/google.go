package native

import (
	"context"
	"encoding/json"
	"strings"

	"google.golang.org/genai"

	"github.com/forgewing/agentcore/internal/llm"
	"github.com/forgewing/agentcore/internal/provider"
	"github.com/forgewing/agentcore/pkg/models"
)

// GoogleBackend implements llm.Backend against the Gemini API's
// GenerateContentStream, in the style of a
// GoogleProvider.processStreamResponse iteration over
// iter.Seq2[*genai.GenerateContentResponse, error] and its per-part
// text/FunctionCall handling.
type GoogleBackend struct{}

func (GoogleBackend) Stream(ctx context.Context, d provider.Descriptor, messages []models.Message, tools []llm.ToolSchema, opts llm.Options) (<-chan models.StreamEvent, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  d.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	var contents []*genai.Content
	var systemParts []*genai.Part
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			systemParts = append(systemParts, &genai.Part{Text: m.Content})
		case models.RoleUser:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		case models.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		case models.RoleTool:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{
				FunctionResponse: &genai.FunctionResponse{Name: m.ToolCallID, Response: map[string]any{"output": m.Content}},
			}}})
		}
	}

	config := &genai.GenerateContentConfig{}
	if len(systemParts) > 0 {
		config.SystemInstruction = &genai.Content{Parts: systemParts}
	}
	if len(tools) > 0 {
		var decls []*genai.FunctionDeclaration
		for _, t := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGeminiSchema(t.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	streamIter := client.Models.GenerateContentStream(ctx, d.ModelID, contents, config)

	out := make(chan models.StreamEvent)
	go func() {
		defer close(out)
		toolIndex := 0
		var promptTokens, completionTokens int64
		for resp, err := range streamIter {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err != nil {
				select {
				case out <- models.ErrorEvent("malformed_stream", err.Error()):
				case <-ctx.Done():
				}
				return
			}
			if resp == nil {
				continue
			}
			if resp.UsageMetadata != nil {
				promptTokens = int64(resp.UsageMetadata.PromptTokenCount)
				completionTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
			}
			for _, candidate := range resp.Candidates {
				if candidate == nil || candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part == nil {
						continue
					}
					if part.Text != "" {
						select {
						case out <- models.ContentDeltaEvent(part.Text):
						case <-ctx.Done():
							return
						}
					}
					if part.FunctionCall != nil {
						argsJSON, jerr := json.Marshal(part.FunctionCall.Args)
						if jerr != nil {
							argsJSON = []byte("{}")
						}
						ev := models.StreamEvent{
							Kind:       models.EventToolCallPartial,
							Index:      toolIndex,
							ToolCallID: part.FunctionCall.Name,
							ToolName:   part.FunctionCall.Name,
							ArgsFrag:   string(argsJSON),
						}
						toolIndex++
						select {
						case out <- ev:
						case <-ctx.Done():
							return
						}
					}
				}
			}
		}
		select {
		case out <- models.UsageEvent(promptTokens, completionTokens, promptTokens+completionTokens):
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// toGeminiSchema converts a tool's JSON-schema parameters map into
// Gemini's own Schema type, in the style of a
// toolconv.ToGeminiSchema recursive walk over type/description/enum/
// properties/required/items.
func toGeminiSchema(params map[string]any) *genai.Schema {
	if params == nil {
		return nil
	}

	schema := &genai.Schema{}

	if t, ok := params["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := params["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := params["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := params["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = toGeminiSchema(propMap)
			}
		}
	}
	if required, ok := params["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := params["items"].(map[string]any); ok {
		schema.Items = toGeminiSchema(items)
	}

	return schema
}
