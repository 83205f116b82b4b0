package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPromptBuilderComposesSections(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "AGENTS.md"), []byte("You operate a build pipeline."), 0o644); err != nil {
		t.Fatalf("write AGENTS.md: %v", err)
	}
	skillsDir := filepath.Join(dir, "skills")
	if err := os.MkdirAll(skillsDir, 0o755); err != nil {
		t.Fatalf("mkdir skills: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skillsDir, "deploy.md"), []byte("deploy skill"), 0o644); err != nil {
		t.Fatalf("write skill: %v", err)
	}

	pb := NewPromptBuilder(dir, skillsDir)
	defer pb.Close()

	prompt, err := pb.Build([]ToolInfo{{Name: "exec", Description: "run a shell command"}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(prompt, "You operate a build pipeline.") {
		t.Errorf("prompt missing workspace context: %q", prompt)
	}
	if !strings.Contains(prompt, "exec: run a shell command") {
		t.Errorf("prompt missing tool inventory: %q", prompt)
	}
	if !strings.Contains(prompt, "deploy") {
		t.Errorf("prompt missing skills list: %q", prompt)
	}
}

func TestPromptBuilderInvalidatesOnMtimeChange(t *testing.T) {
	dir := t.TempDir()
	agentsPath := filepath.Join(dir, "AGENTS.md")
	if err := os.WriteFile(agentsPath, []byte("version one"), 0o644); err != nil {
		t.Fatalf("write AGENTS.md: %v", err)
	}

	pb := NewPromptBuilder(dir, "")
	defer pb.Close()

	first, err := pb.Build(nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(first, "version one") {
		t.Fatalf("expected first build to contain %q, got %q", "version one", first)
	}

	// Force a distinct mtime; some filesystems have 1s resolution.
	future := time.Now().Add(2 * time.Second)
	if err := os.WriteFile(agentsPath, []byte("version two"), 0o644); err != nil {
		t.Fatalf("rewrite AGENTS.md: %v", err)
	}
	if err := os.Chtimes(agentsPath, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	second, err := pb.Build(nil)
	if err != nil {
		t.Fatalf("second Build() error = %v", err)
	}
	if !strings.Contains(second, "version two") {
		t.Errorf("expected rebuilt prompt to reflect edit, got %q", second)
	}
}
