package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/forgewing/agentcore/internal/provider"
	"github.com/forgewing/agentcore/pkg/models"
)

func TestOpenAICompatBackendStreamsContentAndUsage(t *testing.T) {
	chunks := []string{
		`{"choices":[{"delta":{"content":"hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{}}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	backend := NewOpenAICompatBackend()
	ch, err := backend.Stream(context.Background(), provider.Descriptor{Label: "p1", BaseURL: srv.URL, ModelID: "test-model"}, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var content string
	var sawUsage bool
	for ev := range ch {
		switch ev.Kind {
		case models.EventContentDelta:
			content += ev.Text
		case models.EventUsage:
			sawUsage = true
			if ev.TotalTokens != 5 {
				t.Errorf("TotalTokens = %d, want 5", ev.TotalTokens)
			}
		}
	}
	if content != "hello" {
		t.Errorf("content = %q, want %q", content, "hello")
	}
	if !sawUsage {
		t.Error("expected a usage event from the response stream")
	}
}

func TestOpenAICompatBackendStreamsToolCallFragments(t *testing.T) {
	chunks := []string{
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call-1","function":{"name":"read"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"path\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"a.txt\"}"}}]}}]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	backend := NewOpenAICompatBackend()
	ch, err := backend.Stream(context.Background(), provider.Descriptor{Label: "p1", BaseURL: srv.URL}, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	acc := NewToolCallAccumulator()
	for ev := range ch {
		acc.Feed(ev)
	}
	calls := acc.Finalize()
	if len(calls) != 1 || calls[0].ID != "call-1" || calls[0].Name != "read" {
		t.Fatalf("calls = %+v, want one read call with id call-1", calls)
	}
	if string(calls[0].Arguments) != `{"path":"a.txt"}` {
		t.Errorf("Arguments = %s, want the reassembled JSON fragment", calls[0].Arguments)
	}
}

func TestOpenAICompatBackendClassifiesTransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	backend := NewOpenAICompatBackend()
	_, err := backend.Stream(context.Background(), provider.Descriptor{Label: "p1", BaseURL: srv.URL}, nil, nil, Options{})
	if err == nil {
		t.Fatal("expected Stream() to return an error for a 503 response")
	}
	var ce *classifiedErr
	if !asClassifiedErr(err, &ce) || !ce.transient {
		t.Errorf("expected a transient classified error, got %v", err)
	}
}

func TestOpenAICompatBackendClassifiesFatalStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	backend := NewOpenAICompatBackend()
	_, err := backend.Stream(context.Background(), provider.Descriptor{Label: "p1", BaseURL: srv.URL}, nil, nil, Options{})
	if err == nil {
		t.Fatal("expected Stream() to return an error for a 401 response")
	}
	var ce *classifiedErr
	if !asClassifiedErr(err, &ce) || ce.transient {
		t.Errorf("expected a fatal classified error, got %v", err)
	}
}

func asClassifiedErr(err error, target **classifiedErr) bool {
	if ce, ok := err.(*classifiedErr); ok {
		*target = ce
		return true
	}
	return false
}
