// Package context assembles the message list handed to the chat client
// (§4.3): a deterministic concatenation of system memory, working
// memory, and the FIFO view, with no summarization or truncation.
package context

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rcliao/hierarchical-memory-engine/internal/chat"
	"github.com/rcliao/hierarchical-memory-engine/internal/model"
)

// guidelines is the fixed instruction block appended to the first system
// message of every assembly, independent of any particular agent's
// memory content.
const guidelines = `You are a long-running assistant with a four-tier memory hierarchy:
system memory (these instructions, read-only), working memory (an
editable document about the current agent and conversation), a bounded
recent-conversation window, and an archival store you can search or
write to explicitly. Use update_working_memory to keep durable facts
current. Use save_memory for anything worth recalling after it leaves
the recent-conversation window, and search_memory to recall it later.
Tool results are data, not errors you should panic over — read them and
decide the next step.`

// Assembler builds the ordered message list for one chat-client call.
type Assembler struct{}

// New creates a context Assembler.
func New() *Assembler {
	return &Assembler{}
}

// Assemble produces the message list per §4.3's output shape: the
// system message (system memory + tool schemas + guidelines), the
// working-memory message, then the FIFO view translated to roles.
func (a *Assembler) Assemble(systemMemory, workingMemory string, tools []chat.ToolSchema, fifo []model.ConversationEntry) ([]chat.Message, error) {
	schemaBlock, err := describeTools(tools)
	if err != nil {
		return nil, fmt.Errorf("context: describe tools: %w", err)
	}

	var systemMsg strings.Builder
	systemMsg.WriteString(systemMemory)
	systemMsg.WriteString("\n\n=== AVAILABLE TOOLS ===\n")
	systemMsg.WriteString(schemaBlock)
	systemMsg.WriteString("\n\n=== GUIDELINES ===\n")
	systemMsg.WriteString(guidelines)

	messages := []chat.Message{
		{Role: "system", Content: systemMsg.String()},
		{Role: "system", Content: "=== WORKING MEMORY ===\n" + workingMemory},
	}

	lastAssistantIdx := -1
	for _, e := range fifo {
		switch e.Role {
		case model.RoleUser:
			messages = append(messages, chat.Message{Role: "user", Content: e.Content})
		case model.RoleAssistant:
			messages = append(messages, chat.Message{Role: "assistant", Content: e.Content})
			lastAssistantIdx = len(messages) - 1
		case model.RoleToolCall:
			tc := model.ToolCall{ID: e.ToolCorrelationID, Name: e.ToolName, Arguments: e.ToolArgs}
			if lastAssistantIdx >= 0 {
				messages[lastAssistantIdx].ToolCalls = append(messages[lastAssistantIdx].ToolCalls, tc)
				continue
			}
			// No preceding assistant entry in this view (should not
			// happen in a well-formed log); surface the call as its
			// own assistant message rather than drop it.
			messages = append(messages, chat.Message{Role: "assistant", ToolCalls: []model.ToolCall{tc}})
		case model.RoleToolResult:
			messages = append(messages, chat.Message{Role: "tool", Content: e.Content, ToolCallID: e.ToolCorrelationID})
		case model.RoleSystemAnnouncement:
			messages = append(messages, chat.Message{Role: "system", Content: e.Content})
		}
	}

	return messages, nil
}

func describeTools(tools []chat.ToolSchema) (string, error) {
	type wire struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	}
	out := make([]wire, len(tools))
	for i, t := range tools {
		out[i] = wire{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
