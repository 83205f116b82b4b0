package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ToolInfo is the slice of a tool's identity the prompt builder needs,
// kept independent of the tools package to avoid an import cycle.
type ToolInfo struct {
	Name        string
	Description string
}

// PromptBuilder composes the static system message from workspace
// context, the tool inventory, and the skills list, caching the
// result until the workspace or skills directory changes, in the
// style of an mtime-staleness idiom plus fsnotify-based live
// invalidation.
type PromptBuilder struct {
	workspaceRoot string
	skillsDir     string

	mu       sync.Mutex
	cached   string
	built    bool
	workMod  time.Time
	skillMod time.Time

	watcher *fsnotify.Watcher
}

// NewPromptBuilder prepares a builder over workspaceRoot (whose
// AGENTS.md or README.md supplies workspace context) and skillsDir
// (whose file names supply the skills list; pass "" to omit). It
// starts an fsnotify watch on both paths, best-effort: a watcher
// failure degrades to mtime-only invalidation on each Build call.
func NewPromptBuilder(workspaceRoot, skillsDir string) *PromptBuilder {
	pb := &PromptBuilder{workspaceRoot: workspaceRoot, skillsDir: skillsDir}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err := watcher.Add(workspaceRoot); err != nil {
			watcher.Close()
			watcher = nil
		} else {
			if skillsDir != "" {
				_ = watcher.Add(skillsDir) // optional; absence just means no live invalidation for it
			}
			pb.watcher = watcher
			go pb.watchLoop()
		}
	}
	return pb
}

func (pb *PromptBuilder) watchLoop() {
	for {
		select {
		case event, ok := <-pb.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				pb.mu.Lock()
				pb.built = false
				pb.mu.Unlock()
			}
		case _, ok := <-pb.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the fsnotify watch, if one is running.
func (pb *PromptBuilder) Close() error {
	if pb.watcher == nil {
		return nil
	}
	return pb.watcher.Close()
}

// Build returns the cached system prompt, rebuilding it if the
// workspace context file or skills directory has a newer mtime than
// the last build, or if a live fsnotify event marked the cache dirty.
func (pb *PromptBuilder) Build(tools []ToolInfo) (string, error) {
	workMod := pb.latestMod(pb.workspaceContextPath())
	skillMod := pb.latestMod(pb.skillsDir)

	pb.mu.Lock()
	defer pb.mu.Unlock()

	stale := !pb.built || workMod.After(pb.workMod) || skillMod.After(pb.skillMod)
	if !stale {
		return pb.cached, nil
	}

	rendered, err := pb.render(tools)
	if err != nil {
		return "", err
	}
	pb.cached = rendered
	pb.built = true
	pb.workMod = workMod
	pb.skillMod = skillMod
	return pb.cached, nil
}

func (pb *PromptBuilder) workspaceContextPath() string {
	for _, name := range []string{"AGENTS.md", "README.md"} {
		path := filepath.Join(pb.workspaceRoot, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (pb *PromptBuilder) latestMod(path string) time.Time {
	if path == "" {
		return time.Time{}
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func (pb *PromptBuilder) render(tools []ToolInfo) (string, error) {
	var sections []string

	if contextPath := pb.workspaceContextPath(); contextPath != "" {
		raw, err := os.ReadFile(contextPath)
		if err != nil {
			return "", fmt.Errorf("read workspace context: %w", err)
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			sections = append(sections, text)
		}
	}

	if len(tools) > 0 {
		sorted := make([]ToolInfo, len(tools))
		copy(sorted, tools)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
		var b strings.Builder
		b.WriteString("Available tools:\n")
		for _, t := range sorted {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	if names, err := pb.skillNames(); err == nil && len(names) > 0 {
		var b strings.Builder
		b.WriteString("Available skills:\n")
		for _, n := range names {
			fmt.Fprintf(&b, "- %s\n", n)
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}

	return strings.Join(sections, "\n\n"), nil
}

func (pb *PromptBuilder) skillNames() ([]string, error) {
	if pb.skillsDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(pb.skillsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(names)
	return names, nil
}
