package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGrepToolFindsMatchesAcrossFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.go"), "package a\n\nfunc Widget() {}\n")
	writeFile(t, filepath.Join(root, "b.go"), "package b\n\nfunc Other() {}\n")

	grep, err := NewGrepTool()
	if err != nil {
		t.Fatalf("NewGrepTool() error = %v", err)
	}
	tc := testContext(root)

	raw, _ := json.Marshal(map[string]any{"pattern": "Widget"})
	res := grep.Invoke(context.Background(), raw, tc)
	if !res.Ok {
		t.Fatalf("Invoke() failed: %s", res.Output)
	}
	if !strings.Contains(res.Output, "Widget") {
		t.Errorf("output = %q, want it to mention the matched line", res.Output)
	}
	if strings.Contains(res.Output, "Other") {
		t.Errorf("output = %q, should not mention the non-matching file", res.Output)
	}
}

func TestGrepToolNoMatches(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.go"), "package a\n")

	grep, err := NewGrepTool()
	if err != nil {
		t.Fatal(err)
	}
	tc := testContext(root)

	raw, _ := json.Marshal(map[string]any{"pattern": "DoesNotExistAnywhere"})
	res := grep.Invoke(context.Background(), raw, tc)
	if !res.Ok {
		t.Fatalf("Invoke() failed: %s", res.Output)
	}
	if !strings.Contains(res.Output, "no matches") {
		t.Errorf("output = %q, want a no-matches result", res.Output)
	}
}

func TestGrepToolRequiresPattern(t *testing.T) {
	root := t.TempDir()
	grep, err := NewGrepTool()
	if err != nil {
		t.Fatal(err)
	}
	tc := testContext(root)

	raw, _ := json.Marshal(map[string]any{})
	res := grep.Invoke(context.Background(), raw, tc)
	if res.Ok {
		t.Fatal("expected Invoke() to reject a missing pattern")
	}
}

func TestGrepToolDeniedWithoutAllowlist(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.go"), "package a\n")

	grep, err := NewGrepTool()
	if err != nil {
		t.Fatal(err)
	}
	tc := testContext(root)
	tc.Policy.ReadAllowlist = nil

	raw, _ := json.Marshal(map[string]any{"pattern": "package"})
	res := grep.Invoke(context.Background(), raw, tc)
	if res.Ok {
		t.Fatal("expected Invoke() to deny a read outside the allowlist")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
