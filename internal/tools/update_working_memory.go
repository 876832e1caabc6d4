package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/hierarchical-memory-engine/internal/model"
	"github.com/rcliao/hierarchical-memory-engine/internal/workingmem"
)

// UpdateWorkingMemoryTool handles update_working_memory: the only way
// working memory (§4.1) may change. The document is a flat list of
// "field: value" lines; updating a known field replaces its line,
// updating an unknown one appends a new line.
type UpdateWorkingMemoryTool struct {
	wm      *workingmem.Store
	agentID string
}

// NewUpdateWorkingMemoryTool creates an UpdateWorkingMemoryTool scoped
// to one agent.
func NewUpdateWorkingMemoryTool(wm *workingmem.Store, agentID string) *UpdateWorkingMemoryTool {
	return &UpdateWorkingMemoryTool{wm: wm, agentID: agentID}
}

func (t *UpdateWorkingMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool("update_working_memory",
		mcp.WithDescription("Update a field in working memory, the editable document of durable facts about yourself and this conversation."),
		mcp.WithString("field", mcp.Required(), mcp.Description("Field name, e.g. 'user_name' or 'current_task'")),
		mcp.WithString("value", mcp.Required(), mcp.Description("New value for the field")),
	)
}

func (t *UpdateWorkingMemoryTool) Handle(ctx context.Context, call model.ToolCall) (*mcp.CallToolResult, error) {
	field := stringArg(call, "field", "")
	value := stringArg(call, "value", "")
	if field == "" {
		return mcp.NewToolResultError("'field' is required"), nil
	}

	current, err := t.wm.Get(t.agentID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load working memory: %v", err)), nil
	}

	updated := upsertField(current, field, value)
	if err := t.wm.Replace(t.agentID, updated); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update working memory: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Updated %s", field)), nil
}

func upsertField(doc, field, value string) string {
	prefix := field + ": "
	lines := strings.Split(doc, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, prefix) {
			lines[i] = prefix + value
			return strings.Join(lines, "\n")
		}
	}
	if doc != "" && !strings.HasSuffix(doc, "\n") {
		doc += "\n"
	}
	return doc + prefix + value
}
