package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// redirectTransport rewrites every outgoing request to target before
// delegating to the real transport, so a tool that hits a hardcoded
// public endpoint can be pointed at an httptest server instead.
type redirectTransport struct {
	target *url.URL
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func TestWebSearchToolParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"AbstractText": "Go is a programming language.",
			"Heading": "Go (programming language)",
			"AbstractURL": "https://en.wikipedia.org/wiki/Go",
			"RelatedTopics": [
				{"FirstURL": "https://example.com/a", "Text": "Related thing A"},
				{"FirstURL": "https://example.com/b", "Text": "Related thing B"}
			]
		}`))
	}))
	defer srv.Close()
	target, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	tool, err := NewWebSearchTool()
	if err != nil {
		t.Fatal(err)
	}
	tool.httpClient.Transport = redirectTransport{target: target}

	raw, _ := json.Marshal(map[string]any{"query": "golang", "result_count": 2})
	res := tool.Invoke(context.Background(), raw, &Context{})
	if !res.Ok {
		t.Fatalf("Invoke() failed: %s", res.Output)
	}

	var decoded struct {
		Results []webSearchResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(res.Output), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Results) != 2 {
		t.Fatalf("results = %+v, want exactly 2 (respecting result_count)", decoded.Results)
	}
	if decoded.Results[0].URL != "https://en.wikipedia.org/wiki/Go" {
		t.Errorf("first result = %+v, want the abstract result first", decoded.Results[0])
	}
}

func TestWebSearchToolRequiresQuery(t *testing.T) {
	tool, err := NewWebSearchTool()
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(map[string]any{})
	res := tool.Invoke(context.Background(), raw, &Context{})
	if res.Ok {
		t.Fatal("expected Invoke() to reject a missing query")
	}
}

func TestWebSearchToolDefaultsResultCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"RelatedTopics":[
			{"FirstURL":"https://example.com/1","Text":"one"},
			{"FirstURL":"https://example.com/2","Text":"two"},
			{"FirstURL":"https://example.com/3","Text":"three"},
			{"FirstURL":"https://example.com/4","Text":"four"},
			{"FirstURL":"https://example.com/5","Text":"five"},
			{"FirstURL":"https://example.com/6","Text":"six"}
		]}`))
	}))
	defer srv.Close()
	target, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	tool, err := NewWebSearchTool()
	if err != nil {
		t.Fatal(err)
	}
	tool.httpClient.Transport = redirectTransport{target: target}

	raw, _ := json.Marshal(map[string]any{"query": "x"})
	res := tool.Invoke(context.Background(), raw, &Context{})
	if !res.Ok {
		t.Fatalf("Invoke() failed: %s", res.Output)
	}
	var decoded struct {
		Results []webSearchResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(res.Output), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Results) != 5 {
		t.Fatalf("results count = %d, want the default of 5", len(decoded.Results))
	}
}
