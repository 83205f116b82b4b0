package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ProcessTool starts, polls, lists and kills background shell
// processes tracked by a ProcessManager, in the style of an
// internal/tools/exec.Manager's background-process support.
type ProcessTool struct {
	schema    map[string]any
	validator *compiledValidator
}

type processArgs struct {
	Action  string `json:"action" jsonschema:"enum=start,enum=poll,enum=list,enum=kill,description=Process operation to perform."`
	Command string `json:"command,omitempty" jsonschema:"description=Shell command to run. Required for start."`
	Cwd     string `json:"cwd,omitempty" jsonschema:"description=Working directory, relative to the workspace root."`
	ID      string `json:"id,omitempty" jsonschema:"description=Process id returned by start. Required for poll/kill."`
}

func NewProcessTool() (*ProcessTool, error) {
	schema := generateSchema(processArgs{})
	validator, err := newValidator("process", schema)
	if err != nil {
		return nil, err
	}
	return &ProcessTool{schema: schema, validator: validator}, nil
}

func (t *ProcessTool) Name() string { return "process" }

func (t *ProcessTool) Description() string {
	return "Start and manage long-running background shell processes within the sandboxed workspace."
}

func (t *ProcessTool) Schema() map[string]any { return t.schema }

func (t *ProcessTool) Invoke(ctx context.Context, raw json.RawMessage, tc *Context) Result {
	if err := t.validator.Validate(raw); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	var args processArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if tc.Processes == nil {
		return Result{Ok: false, Output: "process manager is not available for this session"}
	}

	switch strings.ToLower(args.Action) {
	case "start":
		if args.Command == "" {
			return Result{Ok: false, Output: "command is required for start"}
		}
		if err := tc.Policy.CheckCommand(args.Command); err != nil {
			return Result{Ok: false, Output: err.Error()}
		}
		cwd := tc.WorkspaceRoot
		if args.Cwd != "" {
			resolved, err := resolvePath(tc.WorkspaceRoot, args.Cwd)
			if err != nil {
				return Result{Ok: false, Output: err.Error()}
			}
			cwd = resolved
		}
		id, err := tc.Processes.Start(tc.Cancel.Context(), args.Command, cwd)
		if err != nil {
			return Result{Ok: false, Output: fmt.Sprintf("start process: %v", err)}
		}
		return Result{Ok: true, Output: fmt.Sprintf(`{"id":%q}`, id)}
	case "poll":
		if args.ID == "" {
			return Result{Ok: false, Output: "id is required for poll"}
		}
		info, ok := tc.Processes.Poll(args.ID)
		if !ok {
			return Result{Ok: false, Output: fmt.Sprintf("unknown process id %q", args.ID)}
		}
		return Result{Ok: true, Output: marshalOrError(info)}
	case "list":
		return Result{Ok: true, Output: marshalOrError(tc.Processes.List())}
	case "kill":
		if args.ID == "" {
			return Result{Ok: false, Output: "id is required for kill"}
		}
		if err := tc.Processes.Kill(args.ID); err != nil {
			return Result{Ok: false, Output: fmt.Sprintf("kill process: %v", err)}
		}
		return Result{Ok: true, Output: fmt.Sprintf("killed process %q", args.ID)}
	default:
		return Result{Ok: false, Output: fmt.Sprintf("unknown action %q", args.Action)}
	}
}

func marshalOrError(v any) string {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("encode result: %v", err)
	}
	return string(payload)
}
