package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// PatchTool performs an atomic find-and-replace on a workspace file,
// requiring the old text to appear exactly once, unlike a
// unified-diff internal/tools/files.ApplyPatchTool, whose path
// handling and result shape this otherwise follows.
type PatchTool struct {
	schema    map[string]any
	validator *compiledValidator
}

type patchArgs struct {
	Path    string `json:"path" jsonschema:"description=Path to patch, relative to the workspace root."`
	OldText string `json:"old_text" jsonschema:"description=Text that must appear exactly once in the file."`
	NewText string `json:"new_text" jsonschema:"description=Replacement text."`
}

func NewPatchTool() (*PatchTool, error) {
	schema := generateSchema(patchArgs{})
	validator, err := newValidator("patch", schema)
	if err != nil {
		return nil, err
	}
	return &PatchTool{schema: schema, validator: validator}, nil
}

func (t *PatchTool) Name() string { return "patch" }

func (t *PatchTool) Description() string {
	return "Replace a single unique occurrence of old_text with new_text in a workspace file."
}

func (t *PatchTool) Schema() map[string]any { return t.schema }

func (t *PatchTool) Invoke(ctx context.Context, raw json.RawMessage, tc *Context) Result {
	if err := t.validator.Validate(raw); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	var args patchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if args.OldText == "" {
		return Result{Ok: false, Output: "old_text is required"}
	}

	resolved, err := resolvePath(tc.WorkspaceRoot, args.Path)
	if err != nil {
		return Result{Ok: false, Output: err.Error()}
	}
	if _, err := tc.Policy.CheckWrite(resolved); err != nil {
		return Result{Ok: false, Output: err.Error()}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("read file: %v", err)}
	}
	content := string(data)

	count := strings.Count(content, args.OldText)
	if count == 0 {
		return Result{Ok: false, Output: "old_text not found in file"}
	}
	if count > 1 {
		return Result{Ok: false, Output: fmt.Sprintf("old_text is not unique: found %d occurrences", count)}
	}

	updated := strings.Replace(content, args.OldText, args.NewText, 1)
	if err := os.WriteFile(resolved, []byte(updated), 0o644); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("write file: %v", err)}
	}

	payload, err := json.MarshalIndent(map[string]any{
		"path":         args.Path,
		"replacements": 1,
	}, "", "  ")
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("encode result: %v", err)}
	}
	return Result{Ok: true, Output: string(payload)}
}
