// Package tools implements a uniform capability surface: a registry
// mapping tool name to a descriptor of {schema, invoke}, plus the
// built-in tools themselves, in the style of an
// internal/agent.ToolRegistry/Tool pattern — a closed
// dispatch-by-name model rather than open-ended inheritance.
package tools

import (
	"context"
	"encoding/json"

	"github.com/forgewing/agentcore/internal/cancel"
	"github.com/forgewing/agentcore/internal/sandbox"
	"github.com/forgewing/agentcore/pkg/models"
)

// Context carries everything a tool's Invoke needs beyond its own
// arguments: the sandbox policy, the session this call belongs to,
// the workspace root, and the cancellation token for this turn.
type Context struct {
	Policy        sandbox.Policy
	SessionKey    string
	WorkspaceRoot string
	Cancel        *cancel.Token
	Runner        Runner
	Memory        *MemoryStore
	Processes     *ProcessManager
}

// Runner lets the delegate tool launch an isolated sub-agent turn
// without internal/tools importing internal/runtime (which itself
// imports internal/tools to dispatch calls) — the dependency is
// inverted through this interface and satisfied by the runtime
// package at wiring time.
type Runner interface {
	RunDelegatedTurn(ctx context.Context, task string, model string, cancel *cancel.Token) (string, error)
}

// Result is a tool invocation's outcome: Ok is false for validation,
// sandbox, or execution failures, in which case Output carries a
// human-readable error message fed back to the LLM.
type Result struct {
	Ok     bool
	Output string
}

// Tool is the uniform capability contract every built-in and plugin
// tool satisfies.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the JSON Schema "parameters" object advertised
	// to the LLM verbatim.
	Schema() map[string]any
	// Invoke validates args against Schema before any side effect and
	// performs the tool's effect.
	Invoke(ctx context.Context, args json.RawMessage, tc *Context) Result
}

// AsToolSchema converts a Tool's advertisement into the shared
// models.ToolSchema the LLM client forwards to a provider.
func AsToolSchema(t Tool) models.ToolSchema {
	return models.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Schema(),
	}
}
