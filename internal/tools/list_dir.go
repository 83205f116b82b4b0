package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ListDirTool enumerates a workspace directory, bounded by depth and
// entry count, in the style of an internal/tools/files
// path-resolution idiom.
type ListDirTool struct {
	schema    map[string]any
	validator *compiledValidator
}

const (
	listDirMaxDepth = 3
	listDirEntryCap = 500
)

type listDirArgs struct {
	Path      string `json:"path,omitempty" jsonschema:"description=Directory to list, relative to the workspace root. Defaults to the root."`
	Recursive bool   `json:"recursive,omitempty" jsonschema:"description=Recurse into subdirectories, up to a depth of 3."`
}

type dirEntryInfo struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

func NewListDirTool() (*ListDirTool, error) {
	schema := generateSchema(listDirArgs{})
	validator, err := newValidator("list_dir", schema)
	if err != nil {
		return nil, err
	}
	return &ListDirTool{schema: schema, validator: validator}, nil
}

func (t *ListDirTool) Name() string { return "list_dir" }

func (t *ListDirTool) Description() string {
	return "List directory entries in the workspace, optionally recursing up to depth 3."
}

func (t *ListDirTool) Schema() map[string]any { return t.schema }

func (t *ListDirTool) Invoke(ctx context.Context, raw json.RawMessage, tc *Context) Result {
	if err := t.validator.Validate(raw); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	var args listDirArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if args.Path == "" {
		args.Path = "."
	}

	resolved, err := resolvePath(tc.WorkspaceRoot, args.Path)
	if err != nil {
		return Result{Ok: false, Output: err.Error()}
	}
	if _, err := tc.Policy.CheckRead(resolved); err != nil {
		return Result{Ok: false, Output: err.Error()}
	}

	var entries []dirEntryInfo
	truncated := false
	maxDepth := 0
	if args.Recursive {
		maxDepth = listDirMaxDepth
	}

	err = walkBounded(resolved, resolved, 0, maxDepth, func(path string, info os.FileInfo) bool {
		if len(entries) >= listDirEntryCap {
			truncated = true
			return false
		}
		rel, relErr := filepath.Rel(resolved, path)
		if relErr != nil {
			rel = path
		}
		entries = append(entries, dirEntryInfo{Path: rel, IsDir: info.IsDir(), Size: info.Size()})
		return true
	})
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("list directory: %v", err)}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	payload, err := json.MarshalIndent(map[string]any{
		"path":      args.Path,
		"entries":   entries,
		"truncated": truncated,
	}, "", "  ")
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("encode result: %v", err)}
	}
	return Result{Ok: true, Output: string(payload)}
}

// walkBounded lists root's direct children and, while depth < maxDepth,
// recurses into subdirectories. visit returning false stops the walk.
func walkBounded(root, dir string, depth, maxDepth int, visit func(string, os.FileInfo) bool) error {
	children, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, child := range children {
		info, err := child.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, child.Name())
		if !visit(path, info) {
			return nil
		}
		if info.IsDir() && depth < maxDepth {
			if err := walkBounded(root, path, depth+1, maxDepth, visit); err != nil {
				return err
			}
		}
	}
	return nil
}
