package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// scriptPluginManifest is the JSON5 document describing a single
// script-backed tool, loaded from a plugin directory at turn start.
type scriptPluginManifest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Command     string         `json:"command"`
	TimeoutSecs int            `json:"timeout"`
}

// ScriptPluginTool adapts a manifest-declared external command into a
// Tool: arguments are marshalled to JSON and written to the child
// process's stdin, and its stdout is returned verbatim as the tool
// output, in the style of the subprocess-invocation idiom in an
// internal/tools/exec.Manager. The manifest's parameters are only
// advertised to the LLM; Invoke does not validate arguments against
// them.
type ScriptPluginTool struct {
	manifest scriptPluginManifest
}

// LoadScriptPlugins reads every *.json5 (or *.json) manifest in dir and
// returns the Tool for each. A manifest that fails to parse is skipped
// with its error returned alongside any tools that did load.
func LoadScriptPlugins(dir string) ([]Tool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read plugin directory: %w", err)
	}

	var tools []Tool
	var errs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".json5" && ext != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		var manifest scriptPluginManifest
		if err := json5.Unmarshal(raw, &manifest); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		if manifest.Name == "" || manifest.Command == "" {
			errs = append(errs, fmt.Sprintf("%s: manifest must set name and command", path))
			continue
		}
		tools = append(tools, &ScriptPluginTool{manifest: manifest})
	}
	if len(errs) > 0 {
		return tools, fmt.Errorf("plugin load errors: %s", strings.Join(errs, "; "))
	}
	return tools, nil
}

func (t *ScriptPluginTool) Name() string { return t.manifest.Name }

func (t *ScriptPluginTool) Description() string { return t.manifest.Description }

func (t *ScriptPluginTool) Schema() map[string]any {
	if t.manifest.Parameters != nil {
		return t.manifest.Parameters
	}
	return map[string]any{"type": "object"}
}

func (t *ScriptPluginTool) Invoke(ctx context.Context, raw json.RawMessage, tc *Context) Result {
	timeout := tc.Policy.ClampTimeout(t.manifest.TimeoutSecs)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", t.manifest.Command)
	cmd.Dir = tc.WorkspaceRoot
	// Stop waiting on output pipes shortly after the timeout kills the
	// shell, even if a grandchild it spawned still holds them open.
	cmd.WaitDelay = time.Second
	cmd.Stdin = bytes.NewReader(raw)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return Result{Ok: false, Output: fmt.Sprintf("plugin %q exceeded %s timeout", t.manifest.Name, timeout)}
		}
		return Result{Ok: false, Output: fmt.Sprintf("plugin %q failed: %v: %s", t.manifest.Name, err, stderr.String())}
	}
	return Result{Ok: true, Output: stdout.String()}
}
