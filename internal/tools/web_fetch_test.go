package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebFetchToolRejectsNonHTTPScheme(t *testing.T) {
	tool, err := NewWebFetchTool()
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(map[string]any{"url": "ftp://example.com/file"})
	res := tool.Invoke(context.Background(), raw, &Context{})
	if res.Ok {
		t.Fatal("expected Invoke() to reject a non-http(s) URL")
	}
}

func TestWebFetchToolStripsHTMLAndCapsOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><style>body{color:red}</style></head>
<body><script>alert(1)</script><h1>Hello</h1><p>World   wide   web</p></body></html>`))
	}))
	defer srv.Close()

	tool, err := NewWebFetchTool()
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(map[string]any{"url": srv.URL})
	res := tool.Invoke(context.Background(), raw, &Context{})
	if !res.Ok {
		t.Fatalf("Invoke() failed: %s", res.Output)
	}

	var decoded struct {
		Content   string `json:"content"`
		Truncated bool   `json:"truncated"`
	}
	if err := json.Unmarshal([]byte(res.Output), &decoded); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(decoded.Content, "<") || strings.Contains(decoded.Content, "alert") || strings.Contains(decoded.Content, "color:red") {
		t.Errorf("content = %q, want script/style/tags stripped", decoded.Content)
	}
	if !strings.Contains(decoded.Content, "Hello") {
		t.Errorf("content = %q, want it to retain visible text", decoded.Content)
	}
	if decoded.Truncated {
		t.Error("did not expect a short page to be marked truncated")
	}
}

func TestWebFetchToolPropagatesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tool, err := NewWebFetchTool()
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(map[string]any{"url": srv.URL})
	res := tool.Invoke(context.Background(), raw, &Context{})
	if res.Ok {
		t.Fatal("expected Invoke() to fail on a non-200 response")
	}
}
