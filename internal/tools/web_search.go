package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// WebSearchTool queries DuckDuckGo's public JSON instant-answer API and returns
// {title, url, snippet} results, in the style of an
// internal/tools/websearch.WebSearchTool DuckDuckGo backend, trimmed
// to a single-backend contract.
type WebSearchTool struct {
	schema     map[string]any
	validator  *compiledValidator
	httpClient *http.Client
}

type webSearchArgs struct {
	Query       string `json:"query" jsonschema:"description=Search query text."`
	ResultCount int    `json:"result_count,omitempty" jsonschema:"minimum=1,maximum=20,description=Number of results to return, default 5, max 20."`
}

type webSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

func NewWebSearchTool() (*WebSearchTool, error) {
	schema := generateSchema(webSearchArgs{})
	validator, err := newValidator("web_search", schema)
	if err != nil {
		return nil, err
	}
	return &WebSearchTool{
		schema:     schema,
		validator:  validator,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}, nil
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the public web and return a list of titled results with snippets."
}

func (t *WebSearchTool) Schema() map[string]any { return t.schema }

func (t *WebSearchTool) Invoke(ctx context.Context, raw json.RawMessage, tc *Context) Result {
	if err := t.validator.Validate(raw); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	var args webSearchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if args.Query == "" {
		return Result{Ok: false, Output: "query is required"}
	}
	count := args.ResultCount
	if count <= 0 {
		count = 5
	}
	if count > 20 {
		count = 20
	}

	requestURL := fmt.Sprintf("https://api.duckduckgo.com/?q=%s&format=json&no_html=1", url.QueryEscape(args.Query))
	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; agentcore/1.0)")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("search request failed: %v", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{Ok: false, Output: fmt.Sprintf("search endpoint returned HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("read search response: %v", err)}
	}

	var parsed struct {
		AbstractText  string `json:"AbstractText"`
		Heading       string `json:"Heading"`
		AbstractURL   string `json:"AbstractURL"`
		RelatedTopics []struct {
			FirstURL string `json:"FirstURL"`
			Text     string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("parse search response: %v", err)}
	}

	var results []webSearchResult
	if parsed.AbstractText != "" && parsed.AbstractURL != "" {
		results = append(results, webSearchResult{Title: parsed.Heading, URL: parsed.AbstractURL, Snippet: parsed.AbstractText})
	}
	for _, topic := range parsed.RelatedTopics {
		if len(results) >= count {
			break
		}
		if topic.FirstURL == "" || topic.Text == "" {
			continue
		}
		title := topic.Text
		if len(title) > 100 {
			title = title[:100]
		}
		results = append(results, webSearchResult{Title: title, URL: topic.FirstURL, Snippet: topic.Text})
	}

	payload, err := json.MarshalIndent(map[string]any{"query": args.Query, "results": results}, "", "  ")
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("encode result: %v", err)}
	}
	return Result{Ok: true, Output: string(payload)}
}
