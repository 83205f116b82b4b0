package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// FindTool discovers files by glob pattern, optional entry type, and
// max depth, sharing workspace resolution with ListDirTool.
type FindTool struct {
	schema    map[string]any
	validator *compiledValidator
}

type findArgs struct {
	Glob     string `json:"glob" jsonschema:"description=Glob pattern to match against file names, e.g. *.go."`
	Path     string `json:"path,omitempty" jsonschema:"description=Directory to search under, relative to the workspace root."`
	Type     string `json:"type,omitempty" jsonschema:"enum=file,enum=dir,description=Restrict results to files or directories."`
	MaxDepth int    `json:"max_depth,omitempty" jsonschema:"minimum=0,description=Maximum recursion depth below path."`
}

func NewFindTool() (*FindTool, error) {
	schema := generateSchema(findArgs{})
	validator, err := newValidator("find", schema)
	if err != nil {
		return nil, err
	}
	return &FindTool{schema: schema, validator: validator}, nil
}

func (t *FindTool) Name() string { return "find" }

func (t *FindTool) Description() string {
	return "Find files in the workspace by glob pattern, optional type filter and max depth."
}

func (t *FindTool) Schema() map[string]any { return t.schema }

func (t *FindTool) Invoke(ctx context.Context, raw json.RawMessage, tc *Context) Result {
	if err := t.validator.Validate(raw); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	var args findArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if args.Glob == "" {
		return Result{Ok: false, Output: "glob is required"}
	}
	if args.Path == "" {
		args.Path = "."
	}
	maxDepth := args.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 32
	}

	resolved, err := resolvePath(tc.WorkspaceRoot, args.Path)
	if err != nil {
		return Result{Ok: false, Output: err.Error()}
	}
	if _, err := tc.Policy.CheckRead(resolved); err != nil {
		return Result{Ok: false, Output: err.Error()}
	}

	var found []string
	err = walkBounded(resolved, resolved, 0, maxDepth, func(path string, info os.FileInfo) bool {
		if args.Type == "file" && info.IsDir() {
			return true
		}
		if args.Type == "dir" && !info.IsDir() {
			return true
		}
		ok, matchErr := filepath.Match(args.Glob, filepath.Base(path))
		if matchErr == nil && ok {
			if rel, relErr := filepath.Rel(resolved, path); relErr == nil {
				found = append(found, rel)
			}
		}
		return true
	})
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("find failed: %v", err)}
	}
	sort.Strings(found)

	payload, err := json.MarshalIndent(map[string]any{"matches": found}, "", "  ")
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("encode result: %v", err)}
	}
	return Result{Ok: true, Output: string(payload)}
}

// matchGlob reports whether path's base name matches glob.
func matchGlob(glob, path string) (bool, error) {
	return filepath.Match(glob, filepath.Base(path))
}

// grepFile scans path line by line, appending "path:line:text" entries
// to matches for every line matching re, with contextLines of
// surrounding context.
func grepFile(re *regexp.Regexp, path string, contextLines int, matches *[]string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	for i, line := range lines {
		if !re.MatchString(line) {
			continue
		}
		start := i - contextLines
		if start < 0 {
			start = 0
		}
		end := i + contextLines
		if end >= len(lines) {
			end = len(lines) - 1
		}
		for j := start; j <= end; j++ {
			*matches = append(*matches, fmt.Sprintf("%s:%d:%s", path, j+1, lines[j]))
		}
		if contextLines > 0 {
			*matches = append(*matches, strings.Repeat("-", 3))
		}
	}
}
