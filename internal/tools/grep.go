package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// GrepTool searches file contents by regex, preferring an external
// ripgrep or grep binary when present and falling back to a pure-Go
// walk otherwise, in the style of an exec.LookPath probing idiom.
type GrepTool struct {
	schema    map[string]any
	validator *compiledValidator
}

type grepArgs struct {
	Pattern      string `json:"pattern" jsonschema:"description=Regular expression to search for."`
	Path         string `json:"path,omitempty" jsonschema:"description=Directory or file to search, relative to the workspace root. Defaults to the root."`
	Glob         string `json:"glob,omitempty" jsonschema:"description=Glob filter applied to candidate file names."`
	ContextLines int    `json:"context_lines,omitempty" jsonschema:"minimum=0,description=Lines of context to include before and after each match."`
}

func NewGrepTool() (*GrepTool, error) {
	schema := generateSchema(grepArgs{})
	validator, err := newValidator("grep", schema)
	if err != nil {
		return nil, err
	}
	return &GrepTool{schema: schema, validator: validator}, nil
}

func (t *GrepTool) Name() string { return "grep" }

func (t *GrepTool) Description() string {
	return "Search file contents in the workspace by regular expression, smart-case, with optional glob filter and context lines."
}

func (t *GrepTool) Schema() map[string]any { return t.schema }

func (t *GrepTool) Invoke(ctx context.Context, raw json.RawMessage, tc *Context) Result {
	if err := t.validator.Validate(raw); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	var args grepArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if args.Pattern == "" {
		return Result{Ok: false, Output: "pattern is required"}
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

	smartCase := args.Pattern == strings.ToLower(args.Pattern)

	if bin, err := exec.LookPath("rg"); err == nil {
		return t.runExternal(ctx, bin, []string{"--no-heading"}, args, resolved, smartCase)
	}
	if bin, err := exec.LookPath("grep"); err == nil {
		return t.runExternal(ctx, bin, nil, args, resolved, smartCase)
	}
	return t.runPureGo(args, resolved, smartCase)
}

func (t *GrepTool) runExternal(ctx context.Context, bin string, extra []string, args grepArgs, resolved string, smartCase bool) Result {
	cmdArgs := append([]string{}, extra...)
	isRipgrep := strings.HasSuffix(bin, "rg")
	if isRipgrep {
		cmdArgs = append(cmdArgs, "--line-number", "--color", "never")
		if smartCase {
			cmdArgs = append(cmdArgs, "--smart-case")
		}
		if args.ContextLines > 0 {
			cmdArgs = append(cmdArgs, "-C", fmt.Sprintf("%d", args.ContextLines))
		}
		if args.Glob != "" {
			cmdArgs = append(cmdArgs, "--glob", args.Glob)
		}
	} else {
		cmdArgs = append(cmdArgs, "-rn")
		if smartCase {
			cmdArgs = append(cmdArgs, "-i")
		}
		if args.ContextLines > 0 {
			cmdArgs = append(cmdArgs, "-C", fmt.Sprintf("%d", args.ContextLines))
		}
		if args.Glob != "" {
			cmdArgs = append(cmdArgs, "--include", args.Glob)
		}
	}
	cmdArgs = append(cmdArgs, args.Pattern, resolved)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, cmdArgs...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return Result{Ok: true, Output: "no matches"}
		}
		return Result{Ok: false, Output: fmt.Sprintf("grep failed: %v: %s", err, stderr.String())}
	}
	return Result{Ok: true, Output: stdout.String()}
}

func (t *GrepTool) runPureGo(args grepArgs, resolved string, smartCase bool) Result {
	pattern := args.Pattern
	if smartCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid pattern: %v", err)}
	}

	var matches []string
	err = walkBounded(resolved, resolved, 0, 64, func(path string, info os.FileInfo) bool {
		if info.IsDir() {
			return true
		}
		if args.Glob != "" {
			if ok, _ := matchGlob(args.Glob, path); !ok {
				return true
			}
		}
		grepFile(re, path, args.ContextLines, &matches)
		return true
	})
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("search failed: %v", err)}
	}
	if len(matches) == 0 {
		return Result{Ok: true, Output: "no matches"}
	}
	return Result{Ok: true, Output: strings.Join(matches, "\n")}
}
