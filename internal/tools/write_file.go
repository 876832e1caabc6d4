package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/hierarchical-memory-engine/internal/model"
	"github.com/rcliao/hierarchical-memory-engine/internal/sandbox"
)

// WriteFileTool handles write_file.
type WriteFileTool struct {
	sb *sandbox.Sandbox
}

// NewWriteFileTool creates a WriteFileTool scoped to sb.
func NewWriteFileTool(sb *sandbox.Sandbox) *WriteFileTool {
	return &WriteFileTool{sb: sb}
}

func (t *WriteFileTool) Definition() mcp.Tool {
	return mcp.NewTool("write_file",
		mcp.WithDescription("Write content to a file in the workspace, creating parent directories as needed. The write is atomic."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the workspace root")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Content to write")),
	)
}

func (t *WriteFileTool) Handle(ctx context.Context, call model.ToolCall) (*mcp.CallToolResult, error) {
	path := stringArg(call, "path", "")
	content := stringArg(call, "content", "")
	if path == "" {
		return mcp.NewToolResultError("'path' is required"), nil
	}
	if len(content) > maxFileSize {
		return mcp.NewToolResultError(fmt.Sprintf("content is %d bytes, exceeds %d byte limit", len(content), maxFileSize)), nil
	}

	resolved, err := t.sb.Resolve(path, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error creating parent directories for %s: %v", path, err)), nil
	}

	tmp, err := os.CreateTemp(dir, ".write_file-*.tmp")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error writing %s: %v", path, err)), nil
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return mcp.NewToolResultError(fmt.Sprintf("error writing %s: %v", path, err)), nil
	}
	if err := tmp.Close(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error writing %s: %v", path, err)), nil
	}
	if err := os.Rename(tmpPath, resolved); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error writing %s: %v", path, err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Wrote %d bytes to %s", len(content), path)), nil
}
