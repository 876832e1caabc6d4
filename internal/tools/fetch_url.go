package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/hierarchical-memory-engine/internal/model"
)

const (
	fetchMaxSize = 10 << 20 // 10 MiB
	fetchTimeout = 30 * time.Second
)

// FetchURLTool handles fetch_url: a GET-only HTTP(S) client that follows
// redirects only to http or https URLs, with a bounded response size.
type FetchURLTool struct {
	client *http.Client
}

// NewFetchURLTool creates a FetchURLTool.
func NewFetchURLTool() *FetchURLTool {
	return &FetchURLTool{
		client: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
					return fmt.Errorf("redirect to disallowed scheme %q", req.URL.Scheme)
				}
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

func (t *FetchURLTool) Definition() mcp.Tool {
	return mcp.NewTool("fetch_url",
		mcp.WithDescription("Fetch the body of an HTTP or HTTPS URL via GET. No authentication, no non-GET methods."),
		mcp.WithString("url", mcp.Required(), mcp.Description("The URL to fetch")),
	)
}

func (t *FetchURLTool) Handle(ctx context.Context, call model.ToolCall) (*mcp.CallToolResult, error) {
	raw := stringArg(call, "url", "")
	if raw == "" {
		return mcp.NewToolResultError("'url' is required"), nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid url: %v", err)), nil
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return mcp.NewToolResultError("only http and https URLs are allowed"), nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, raw, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error building request: %v", err)), nil
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error fetching %s: %v", raw, err)), nil
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, fetchMaxSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error reading response from %s: %v", raw, err)), nil
	}
	if len(body) > fetchMaxSize {
		body = body[:fetchMaxSize]
		return mcp.NewToolResultText(fmt.Sprintf("[truncated at %d bytes]\n%s", fetchMaxSize, string(body))), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("[%d %s]\n%s", resp.StatusCode, resp.Status, string(body))), nil
}
