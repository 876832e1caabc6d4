package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/hierarchical-memory-engine/internal/archival"
	"github.com/rcliao/hierarchical-memory-engine/internal/model"
)

// SaveMemoryTool handles save_memory, embedding content and inserting
// it into archival memory (§4.6).
type SaveMemoryTool struct {
	archival *archival.Store
	agentID  string
}

// NewSaveMemoryTool creates a SaveMemoryTool scoped to one agent.
func NewSaveMemoryTool(arch *archival.Store, agentID string) *SaveMemoryTool {
	return &SaveMemoryTool{archival: arch, agentID: agentID}
}

func (t *SaveMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool("save_memory",
		mcp.WithDescription("Save a fact to archival memory for later recall via search_memory. Use this for anything worth remembering beyond the recent conversation window."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The text to remember")),
		mcp.WithString("tags", mcp.Description("Optional comma-separated tags")),
	)
}

func (t *SaveMemoryTool) Handle(ctx context.Context, call model.ToolCall) (*mcp.CallToolResult, error) {
	content := stringArg(call, "content", "")
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}
	tags := stringArg(call, "tags", "")

	var metadata map[string]string
	if tags != "" {
		metadata = map[string]string{"tags": tags}
	}

	if _, err := t.archival.Save(ctx, t.agentID, content, metadata); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save to archival memory: %v", err)), nil
	}
	return mcp.NewToolResultText("Saved to archival memory"), nil
}
