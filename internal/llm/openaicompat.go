package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/forgewing/agentcore/internal/provider"
	"github.com/forgewing/agentcore/pkg/models"
)

// OpenAICompatBackend talks the OpenAI-compatible chat-completions
// wire protocol: POST {base_url}/chat/completions, stream:true, bearer
// auth, text/event-stream response terminated by "data: [DONE]". It is
// the default Backend and the one every provider in a fallback chain
// uses unless a Descriptor names a native Backend instead.
//
// Request bodies are built with github.com/sashabaranov/go-openai's
// typed structs for correctness, but the response is parsed by hand:
// the wire shape includes a reasoning_content delta field the
// go-openai client's own stream reader does not expose, and the
// runtime needs every tool-call argument fragment the moment it is
// parsed rather than the fully-assembled call go-openai hands back.
type OpenAICompatBackend struct {
	HTTPClient *http.Client
}

// NewOpenAICompatBackend returns a backend using http.DefaultClient.
func NewOpenAICompatBackend() *OpenAICompatBackend {
	return &OpenAICompatBackend{HTTPClient: http.DefaultClient}
}

type sseDelta struct {
	Content          *string            `json:"content,omitempty"`
	ReasoningContent *string            `json:"reasoning_content,omitempty"`
	ToolCalls        []sseToolCallDelta `json:"tool_calls,omitempty"`
}

type sseToolCallDelta struct {
	Index    int     `json:"index"`
	ID       *string `json:"id,omitempty"`
	Function *struct {
		Name      *string `json:"name,omitempty"`
		Arguments *string `json:"arguments,omitempty"`
	} `json:"function,omitempty"`
}

type sseChoice struct {
	Delta        sseDelta `json:"delta"`
	FinishReason *string  `json:"finish_reason,omitempty"`
}

type sseUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

type sseChunk struct {
	Choices []sseChoice `json:"choices"`
	Usage   *sseUsage   `json:"usage,omitempty"`
}

func toOpenAITools(tools []ToolSchema) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func toOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := string(m.Role)
		om := openai.ChatCompletionMessage{Role: role, Content: m.Content}
		if m.Role == models.RoleTool {
			om.ToolCallID = m.ToolCallID
		}
		if m.Role == models.RoleAssistant && len(m.ToolCalls) > 0 {
			calls := make([]openai.ToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			om.ToolCalls = calls
		}
		out = append(out, om)
	}
	return out
}

// Stream implements Backend against an OpenAI-compatible endpoint.
func (b *OpenAICompatBackend) Stream(ctx context.Context, d provider.Descriptor, messages []models.Message, tools []ToolSchema, opts Options) (<-chan models.StreamEvent, error) {
	req := openai.ChatCompletionRequest{
		Model:    d.ModelID,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(tools),
		Stream:   true,
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.IncludeUsage {
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(d.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.APIKey)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	client := b.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &classifiedErr{transient: true, err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		transient := isTransientStatus(resp.StatusCode)
		return nil, &classifiedErr{transient: transient, status: resp.StatusCode, err: fmt.Errorf("provider %s returned HTTP %d", d.Label, resp.StatusCode)}
	}

	out := make(chan models.StreamEvent)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		scanErr := scanSSE(resp.Body, func(line string) bool {
			if line == "[DONE]" {
				return false
			}
			var chunk sseChunk
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				select {
				case out <- models.ErrorEvent(string(malformedStreamKind), err.Error()):
				case <-ctx.Done():
				}
				return false
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != nil && *choice.Delta.Content != "" {
					select {
					case out <- models.ContentDeltaEvent(*choice.Delta.Content):
					case <-ctx.Done():
						return false
					}
				}
				if choice.Delta.ReasoningContent != nil && *choice.Delta.ReasoningContent != "" {
					select {
					case out <- models.ReasoningDeltaEvent(*choice.Delta.ReasoningContent):
					case <-ctx.Done():
						return false
					}
				}
				for _, tc := range choice.Delta.ToolCalls {
					ev := models.StreamEvent{Kind: models.EventToolCallPartial, Index: tc.Index}
					if tc.ID != nil {
						ev.ToolCallID = *tc.ID
					}
					if tc.Function != nil {
						if tc.Function.Name != nil {
							ev.ToolName = *tc.Function.Name
						}
						if tc.Function.Arguments != nil {
							ev.ArgsFrag = *tc.Function.Arguments
						}
					}
					select {
					case out <- ev:
					case <-ctx.Done():
						return false
					}
				}
			}
			if chunk.Usage != nil {
				select {
				case out <- models.UsageEvent(chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens, chunk.Usage.TotalTokens):
				case <-ctx.Done():
					return false
				}
			}
			return true
		})
		if scanErr != nil {
			select {
			case out <- models.ErrorEvent(string(malformedStreamKind), scanErr.Error()):
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

const malformedStreamKind = "malformed_stream"

func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// scanSSE reads a text/event-stream body, invoking fn with the
// payload of each "data: " line. fn returns false to stop early
// (e.g. on [DONE] or a decode error already reported).
func scanSSE(body io.Reader, fn func(line string) bool) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if !fn(payload) {
			return nil
		}
	}
	return scanner.Err()
}
