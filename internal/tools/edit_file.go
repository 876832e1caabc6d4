package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/hierarchical-memory-engine/internal/model"
	"github.com/rcliao/hierarchical-memory-engine/internal/sandbox"
)

// EditFileTool handles edit_file: an exact-string find/replace, in the
// style of an interactive editor's find-and-replace rather than a
// patch/diff format.
type EditFileTool struct {
	sb *sandbox.Sandbox
}

// NewEditFileTool creates an EditFileTool scoped to sb.
func NewEditFileTool(sb *sandbox.Sandbox) *EditFileTool {
	return &EditFileTool{sb: sb}
}

func (t *EditFileTool) Definition() mcp.Tool {
	return mcp.NewTool("edit_file",
		mcp.WithDescription("Replace an exact string in a file. Fails if the string isn't found, or is ambiguous unless replace_all is set."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the workspace root")),
		mcp.WithString("old", mcp.Required(), mcp.Description("Exact text to find")),
		mcp.WithString("new", mcp.Required(), mcp.Description("Replacement text")),
		mcp.WithBoolean("replace_all", mcp.Description("Replace every occurrence instead of requiring a unique match")),
	)
}

func (t *EditFileTool) Handle(ctx context.Context, call model.ToolCall) (*mcp.CallToolResult, error) {
	path := stringArg(call, "path", "")
	oldText := stringArg(call, "old", "")
	newText := stringArg(call, "new", "")
	replaceAll := boolArg(call, "replace_all", false)

	if path == "" {
		return mcp.NewToolResultError("'path' is required"), nil
	}
	if oldText == "" {
		return mcp.NewToolResultError("'old' is required"), nil
	}

	resolved, err := t.sb.Resolve(path, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("file not found: %s", path)), nil
	}
	content := string(data)

	count := strings.Count(content, oldText)
	if count == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("string not found in %s", path)), nil
	}
	if !replaceAll && count > 1 {
		return mcp.NewToolResultError(fmt.Sprintf("string appears %d times in %s; set replace_all to replace every occurrence", count, path)), nil
	}

	var replaced string
	var n int
	if replaceAll {
		replaced = strings.ReplaceAll(content, oldText, newText)
		n = count
	} else {
		replaced = strings.Replace(content, oldText, newText, 1)
		n = 1
	}

	if err := os.WriteFile(resolved, []byte(replaced), 0600); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error writing %s: %v", path, err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Edited %s (%d replacement(s))", path, n)), nil
}
