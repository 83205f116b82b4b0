package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// ExecTool runs a shell command synchronously inside the sandbox
// policy's command blocklist and timeout clamp, in the style of an
// internal/tools/exec.Manager.runSync.
type ExecTool struct {
	schema    map[string]any
	validator *compiledValidator
}

type execArgs struct {
	Command        string `json:"command" jsonschema:"description=Shell command to execute."`
	Cwd            string `json:"cwd,omitempty" jsonschema:"description=Working directory, relative to the workspace root."`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"description=Maximum seconds to allow the command to run."`
}

func NewExecTool() (*ExecTool, error) {
	schema := generateSchema(execArgs{})
	validator, err := newValidator("exec", schema)
	if err != nil {
		return nil, err
	}
	return &ExecTool{schema: schema, validator: validator}, nil
}

func (t *ExecTool) Name() string { return "exec" }

func (t *ExecTool) Description() string {
	return "Run a shell command in the sandboxed workspace and return its stdout, stderr, and exit code."
}

func (t *ExecTool) Schema() map[string]any { return t.schema }

type execResult struct {
	Command  string `json:"command"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

func (t *ExecTool) Invoke(ctx context.Context, raw json.RawMessage, tc *Context) Result {
	if err := t.validator.Validate(raw); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	var args execArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if args.Command == "" {
		return Result{Ok: false, Output: "command is required"}
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

	timeout := tc.Policy.ClampTimeout(args.TimeoutSeconds)
	runCtx, cancel := context.WithTimeout(tc.Cancel.Context(), timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", args.Command)
	cmd.Dir = cwd
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := execResult{
		Command:  args.Command,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCodeOf(runErr),
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return Result{Ok: false, Output: fmt.Sprintf("command exceeded %s timeout", timeout)}
	}
	return Result{Ok: result.ExitCode == 0, Output: marshalOrError(result)}
}
