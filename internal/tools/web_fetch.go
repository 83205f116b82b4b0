package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// WebFetchTool GETs a URL, strips HTML markup to plain text, and caps
// the result at 128 KiB, in the style of an
// internal/tools/websearch.WebFetchTool extraction flow.
type WebFetchTool struct {
	schema     map[string]any
	validator  *compiledValidator
	httpClient *http.Client
}

const webFetchMaxBytes = 128 * 1024

type webFetchArgs struct {
	URL string `json:"url" jsonschema:"description=URL to fetch (http or https only)."`
}

var (
	htmlScriptStyle = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</\s*(script|style)\s*>`)
	htmlTag         = regexp.MustCompile(`(?s)<[^>]+>`)
	htmlWhitespace  = regexp.MustCompile(`[ \t]+`)
	htmlBlankLines  = regexp.MustCompile(`\n{3,}`)
)

func NewWebFetchTool() (*WebFetchTool, error) {
	schema := generateSchema(webFetchArgs{})
	validator, err := newValidator("web_fetch", schema)
	if err != nil {
		return nil, err
	}
	return &WebFetchTool{
		schema:     schema,
		validator:  validator,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}, nil
}

func (t *WebFetchTool) Name() string { return "web_fetch" }

func (t *WebFetchTool) Description() string {
	return "Fetch a URL over HTTP GET and return its readable text content, capped at 128 KiB."
}

func (t *WebFetchTool) Schema() map[string]any { return t.schema }

func (t *WebFetchTool) Invoke(ctx context.Context, raw json.RawMessage, tc *Context) Result {
	if err := t.validator.Validate(raw); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	var args webFetchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if !strings.HasPrefix(args.URL, "http://") && !strings.HasPrefix(args.URL, "https://") {
		return Result{Ok: false, Output: "url must be http or https"}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, "GET", args.URL, nil)
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; agentcore/1.0)")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("fetch failed: %v", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{Ok: false, Output: fmt.Sprintf("fetch returned HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, webFetchMaxBytes))
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("read response: %v", err)}
	}

	text := stripHTML(string(body))
	truncated := len(text) > webFetchMaxBytes
	if truncated {
		text = text[:webFetchMaxBytes]
	}

	payload, err := json.MarshalIndent(map[string]any{
		"url":       args.URL,
		"content":   text,
		"truncated": truncated,
	}, "", "  ")
	if err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("encode result: %v", err)}
	}
	return Result{Ok: true, Output: string(payload)}
}

func stripHTML(body string) string {
	stripped := htmlScriptStyle.ReplaceAllString(body, "")
	stripped = htmlTag.ReplaceAllString(stripped, "\n")
	stripped = htmlWhitespace.ReplaceAllString(stripped, " ")
	stripped = htmlBlankLines.ReplaceAllString(stripped, "\n\n")
	return strings.TrimSpace(stripped)
}
