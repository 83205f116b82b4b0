// Package models holds the types shared by value across package
// boundaries: session/message records, tool-call payloads, and the
// turn result summary. It has no internal dependencies so that
// runtime, llm, tools, and session can all import it without cycles.
package models

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCallRequest is an LLM's request to invoke a named tool with a
// free-form JSON argument blob. IDs are unique within a session and
// are produced by the provider during streaming.
type ToolCallRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one row in a session's append-only ordered history.
//
// Invariants: every tool-role message's ToolCallID
// references a ToolCallRequest.ID produced by an earlier assistant
// message in the same session; tool-call ids are unique per session;
// insertion order is persisted via CreatedAt plus monotonic sequence.
type Message struct {
	ID               int64             `json:"id"`
	SessionID        string            `json:"session_id"`
	Role             Role              `json:"role"`
	Content          string            `json:"content,omitempty"`
	ReasoningContent string            `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolCallID       string            `json:"tool_call_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Session is the persistent conversation context for one
// (channel, agent, user, chat) tuple, identified by Key
// ("<channel>:<agent>:<user_id>:<chat_id>").
type Session struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Agent       string    `json:"agent"`
	Model       string    `json:"model"`
	Channel     string    `json:"channel"`
	UserID      string    `json:"user_id"`
	ChatID      string    `json:"chat_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	TotalTokens int64     `json:"total_tokens"`
}

// AgentTurnResult summarizes one completed turn.
type AgentTurnResult struct {
	ReplyText        string `json:"reply_text"`
	RoundCount       int    `json:"round_count"`
	ToolCallCount    int    `json:"tool_call_count"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
	LatencyMs        int64  `json:"latency_ms"`
	FinalModelLabel  string `json:"final_model_label"`
	DoneReason       string `json:"done_reason"`
}

// CallLogRecord is the payload published to the external LLM
// call-log collaborator once per LLM call attempt.
type CallLogRecord struct {
	ID                  string    `json:"id"`
	SessionKey          string    `json:"session_key"`
	Model               string    `json:"model"`
	ProviderAttempt     string    `json:"provider_attempt"`
	Streaming           bool      `json:"streaming"`
	RequestMessageCount int       `json:"request_message_count"`
	ResponseContent     string    `json:"response_content,omitempty"`
	ResponseToolCalls   int       `json:"response_tool_call_count"`
	PromptTokens        int64     `json:"prompt_tokens"`
	CompletionTokens    int64     `json:"completion_tokens"`
	TotalTokens         int64     `json:"total_tokens"`
	LatencyMs           int64     `json:"latency_ms"`
	Error               string    `json:"error,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}
