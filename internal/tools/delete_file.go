package tools

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/hierarchical-memory-engine/internal/model"
	"github.com/rcliao/hierarchical-memory-engine/internal/sandbox"
)

// DeleteFileTool handles delete_file.
type DeleteFileTool struct {
	sb *sandbox.Sandbox
}

// NewDeleteFileTool creates a DeleteFileTool scoped to sb.
func NewDeleteFileTool(sb *sandbox.Sandbox) *DeleteFileTool {
	return &DeleteFileTool{sb: sb}
}

func (t *DeleteFileTool) Definition() mcp.Tool {
	return mcp.NewTool("delete_file",
		mcp.WithDescription("Delete a file or directory (recursively) in the workspace. No confirmation is asked."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the workspace root")),
	)
}

func (t *DeleteFileTool) Handle(ctx context.Context, call model.ToolCall) (*mcp.CallToolResult, error) {
	path := stringArg(call, "path", "")
	if path == "" {
		return mcp.NewToolResultError("'path' is required"), nil
	}

	resolved, err := t.sb.Resolve(path, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := os.Stat(resolved); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	if err := os.RemoveAll(resolved); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error deleting %s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted %s", path)), nil
}
