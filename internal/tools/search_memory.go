package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/hierarchical-memory-engine/internal/archival"
	"github.com/rcliao/hierarchical-memory-engine/internal/model"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 20
)

// SearchMemoryTool handles search_memory, embedding the query and
// delegating to archival similarity search (§4.6). Archival recall is
// always an explicit model action — the context assembler never
// injects archival memories on its own (§4.3).
type SearchMemoryTool struct {
	archival *archival.Store
	agentID  string
}

// NewSearchMemoryTool creates a SearchMemoryTool scoped to one agent.
func NewSearchMemoryTool(arch *archival.Store, agentID string) *SearchMemoryTool {
	return &SearchMemoryTool{archival: arch, agentID: agentID}
}

func (t *SearchMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool("search_memory",
		mcp.WithDescription("Search archival memory by semantic similarity and return the top matches with their similarity scores."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language search query")),
		mcp.WithNumber("limit", mcp.Description("Maximum results, up to 20 (default 5)")),
	)
}

func (t *SearchMemoryTool) Handle(ctx context.Context, call model.ToolCall) (*mcp.CallToolResult, error) {
	query := stringArg(call, "query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	limit := intArg(call, "limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	results, err := t.archival.Search(ctx, t.agentID, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No memories found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memories:\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] (similarity %.3f) %s\n", i+1, r.Similarity, r.Entry.Content)
	}
	return mcp.NewToolResultText(b.String()), nil
}
