package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// DelegateTool spawns an isolated sub-agent turn via the Runner
// dependency-inverted interface: a fresh history seeded only by task,
// the parent's provider chain, and the parent's tool registry minus
// delegate itself.
type DelegateTool struct {
	schema    map[string]any
	validator *compiledValidator
}

type delegateArgs struct {
	Task  string `json:"task" jsonschema:"description=The task to hand to the sub-agent, in its own words."`
	Model string `json:"model,omitempty" jsonschema:"description=Optional model override for the sub-agent."`
}

func NewDelegateTool() (*DelegateTool, error) {
	schema := generateSchema(delegateArgs{})
	validator, err := newValidator("delegate", schema)
	if err != nil {
		return nil, err
	}
	return &DelegateTool{schema: schema, validator: validator}, nil
}

func (t *DelegateTool) Name() string { return "delegate" }

func (t *DelegateTool) Description() string {
	return "Spawn an isolated sub-agent to complete a focused task and return its final reply."
}

func (t *DelegateTool) Schema() map[string]any { return t.schema }

func (t *DelegateTool) Invoke(ctx context.Context, raw json.RawMessage, tc *Context) Result {
	if err := t.validator.Validate(raw); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	var args delegateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if args.Task == "" {
		return Result{Ok: false, Output: "task is required"}
	}
	if tc.Runner == nil {
		return Result{Ok: false, Output: "delegation is not available for this session"}
	}

	reply, err := tc.Runner.RunDelegatedTurn(ctx, args.Task, args.Model, tc.Cancel)
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("sub-agent turn failed: %v", err)}
	}
	return Result{Ok: true, Output: reply}
}
