package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ReadTool reads a file from the workspace under a byte budget,
// in the style of internal/tools/files.ReadTool.
type ReadTool struct {
	schema    map[string]any
	validator *compiledValidator
	maxBytes  int
}

type readArgs struct {
	Path     string `json:"path" jsonschema:"description=Path to read, relative to the workspace root."`
	Offset   int64  `json:"offset,omitempty" jsonschema:"minimum=0,description=Byte offset to start reading from."`
	MaxBytes int    `json:"max_bytes,omitempty" jsonschema:"minimum=0,description=Maximum bytes to read, capped by the tool default."`
}

func NewReadTool(maxBytes int) (*ReadTool, error) {
	if maxBytes <= 0 {
		maxBytes = 200_000
	}
	schema := generateSchema(readArgs{})
	validator, err := newValidator("read", schema)
	if err != nil {
		return nil, err
	}
	return &ReadTool{schema: schema, validator: validator, maxBytes: maxBytes}, nil
}

func (t *ReadTool) Name() string { return "read" }

func (t *ReadTool) Description() string {
	return "Read a file from the workspace with optional offset and byte limit."
}

func (t *ReadTool) Schema() map[string]any { return t.schema }

func (t *ReadTool) Invoke(ctx context.Context, raw json.RawMessage, tc *Context) Result {
	if err := t.validator.Validate(raw); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	var args readArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if args.Offset < 0 {
		return Result{Ok: false, Output: "offset must be >= 0"}
	}

	resolved, err := resolvePath(tc.WorkspaceRoot, args.Path)
	if err != nil {
		return Result{Ok: false, Output: err.Error()}
	}
	if _, err := tc.Policy.CheckRead(resolved); err != nil {
		return Result{Ok: false, Output: err.Error()}
	}

	file, err := os.Open(resolved)
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("open file: %v", err)}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("stat file: %v", err)}
	}
	if args.Offset > 0 {
		if _, err := file.Seek(args.Offset, io.SeekStart); err != nil {
			return Result{Ok: false, Output: fmt.Sprintf("seek file: %v", err)}
		}
	}

	limit := t.maxBytes
	if args.MaxBytes > 0 && args.MaxBytes < limit {
		limit = args.MaxBytes
	}
	remaining := info.Size() - args.Offset
	if remaining < 0 {
		remaining = 0
	}
	if remaining > int64(limit) {
		remaining = int64(limit)
	}

	buf, err := io.ReadAll(io.LimitReader(file, remaining))
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("read file: %v", err)}
	}

	truncated := args.Offset+int64(len(buf)) < info.Size()
	payload, err := json.MarshalIndent(map[string]any{
		"path":      args.Path,
		"content":   string(buf),
		"offset":    args.Offset,
		"bytes":     len(buf),
		"truncated": truncated,
	}, "", "  ")
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("encode result: %v", err)}
	}
	return Result{Ok: true, Output: string(payload)}
}
