package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/hierarchical-memory-engine/internal/model"
	"github.com/rcliao/hierarchical-memory-engine/internal/sandbox"
)

const maxFileSize = 10 << 20 // 10 MiB

// ReadFileTool handles read_file.
type ReadFileTool struct {
	sb *sandbox.Sandbox
}

// NewReadFileTool creates a ReadFileTool scoped to sb.
func NewReadFileTool(sb *sandbox.Sandbox) *ReadFileTool {
	return &ReadFileTool{sb: sb}
}

func (t *ReadFileTool) Definition() mcp.Tool {
	return mcp.NewTool("read_file",
		mcp.WithDescription("Read the contents of a file in the workspace. Binary files are returned base64-encoded."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the workspace root")),
	)
}

func (t *ReadFileTool) Handle(ctx context.Context, call model.ToolCall) (*mcp.CallToolResult, error) {
	path := stringArg(call, "path", "")
	if path == "" {
		return mcp.NewToolResultError("'path' is required"), nil
	}

	resolved, err := t.sb.Resolve(path, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("file not found: %s", path)), nil
	}
	if info.Size() > maxFileSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes exceeds %d byte limit", info.Size(), maxFileSize)), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error reading %s: %v", path, err)), nil
	}

	if !utf8.Valid(data) {
		return mcp.NewToolResultText(fmt.Sprintf("[binary, base64-encoded, %d bytes]\n%s", len(data), base64.StdEncoding.EncodeToString(data))), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
