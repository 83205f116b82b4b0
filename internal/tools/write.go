package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteTool writes (or appends to) a file in the workspace, in the
// style of an internal/tools/files.WriteTool.
type WriteTool struct {
	schema    map[string]any
	validator *compiledValidator
}

type writeArgs struct {
	Path    string `json:"path" jsonschema:"description=Path to write, relative to the workspace root."`
	Content string `json:"content" jsonschema:"description=File contents to write."`
	Append  bool   `json:"append,omitempty" jsonschema:"description=Append instead of overwrite."`
}

func NewWriteTool() (*WriteTool, error) {
	schema := generateSchema(writeArgs{})
	validator, err := newValidator("write", schema)
	if err != nil {
		return nil, err
	}
	return &WriteTool{schema: schema, validator: validator}, nil
}

func (t *WriteTool) Name() string { return "write" }

func (t *WriteTool) Description() string {
	return "Write content to a file in the workspace, overwriting by default."
}

func (t *WriteTool) Schema() map[string]any { return t.schema }

func (t *WriteTool) Invoke(ctx context.Context, raw json.RawMessage, tc *Context) Result {
	if err := t.validator.Validate(raw); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	var args writeArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}

	resolved, err := resolvePath(tc.WorkspaceRoot, args.Path)
	if err != nil {
		return Result{Ok: false, Output: err.Error()}
	}
	if _, err := tc.Policy.CheckWrite(resolved); err != nil {
		return Result{Ok: false, Output: err.Error()}
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("create directory: %v", err)}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if args.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("open file: %v", err)}
	}
	defer file.Close()

	n, err := file.WriteString(args.Content)
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("write file: %v", err)}
	}

	payload, err := json.MarshalIndent(map[string]any{
		"path":          args.Path,
		"bytes_written": n,
		"append":        args.Append,
	}, "", "  ")
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("encode result: %v", err)}
	}
	return Result{Ok: true, Output: string(payload)}
}
