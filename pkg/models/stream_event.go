package models

// StreamEventKind tags the variant of a StreamEvent.
type StreamEventKind string

const (
	EventRoundStart      StreamEventKind = "round_start"
	EventContentDelta    StreamEventKind = "content_delta"
	EventReasoningDelta  StreamEventKind = "reasoning_delta"
	EventToolCallPartial StreamEventKind = "tool_call_partial"
	EventToolExec        StreamEventKind = "tool_exec"
	EventToolResult      StreamEventKind = "tool_result"
	EventUsage           StreamEventKind = "usage"
	EventDone            StreamEventKind = "done"
	EventError           StreamEventKind = "error"
)

// StreamEvent is the tagged union every LLM backend and the agent
// runtime emit. Consumers switch on Kind; only the fields relevant to
// that kind are populated. Modeling it as one struct with a Kind tag
// (rather than an interface hierarchy) keeps backend code and runtime
// code matching on the same concrete type rather than threading
// callback-heavy observer interfaces through every layer.
type StreamEvent struct {
	Kind StreamEventKind `json:"kind"`

	// RoundStart
	Round int `json:"round,omitempty"`

	// ContentDelta / ReasoningDelta
	Text string `json:"text,omitempty"`

	// ToolCallPartial
	Index      int    `json:"index,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	ArgsFrag   string `json:"args_fragment,omitempty"`

	// ToolExec / ToolResult
	ToolOK     bool   `json:"tool_ok,omitempty"`
	ToolOutput string `json:"tool_output,omitempty"`

	// Usage
	PromptTokens     int64 `json:"prompt_tokens,omitempty"`
	CompletionTokens int64 `json:"completion_tokens,omitempty"`
	TotalTokens      int64 `json:"total_tokens,omitempty"`

	// Done
	Reason string `json:"reason,omitempty"`

	// Error
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// RoundStartEvent constructs a RoundStart event.
func RoundStartEvent(round int) StreamEvent {
	return StreamEvent{Kind: EventRoundStart, Round: round}
}

// ContentDeltaEvent constructs a ContentDelta event.
func ContentDeltaEvent(text string) StreamEvent {
	return StreamEvent{Kind: EventContentDelta, Text: text}
}

// ReasoningDeltaEvent constructs a ReasoningDelta event.
func ReasoningDeltaEvent(text string) StreamEvent {
	return StreamEvent{Kind: EventReasoningDelta, Text: text}
}

// ToolExecEvent constructs a ToolExec event, emitted just before a
// tool call is dispatched.
func ToolExecEvent(id, name string) StreamEvent {
	return StreamEvent{Kind: EventToolExec, ToolCallID: id, ToolName: name}
}

// ToolResultEvent constructs a ToolResult event, emitted on completion
// of a dispatched tool call.
func ToolResultEvent(id string, ok bool, output string) StreamEvent {
	return StreamEvent{Kind: EventToolResult, ToolCallID: id, ToolOK: ok, ToolOutput: output}
}

// UsageEvent constructs a Usage event.
func UsageEvent(prompt, completion, total int64) StreamEvent {
	return StreamEvent{Kind: EventUsage, PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}

// DoneEvent constructs a Done event with the given termination reason
// ("stop", "round_limit", "error", "cancelled", "timeout").
func DoneEvent(reason string) StreamEvent {
	return StreamEvent{Kind: EventDone, Reason: reason}
}

// ErrorEvent constructs an Error event.
func ErrorEvent(kind, message string) StreamEvent {
	return StreamEvent{Kind: EventError, ErrorKind: kind, Message: message}
}
