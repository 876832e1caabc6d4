// Package model defines the core data types shared across the memory
// engine: agents, archival entries, conversation rows, and transient
// tool calls.
package model

import "time"

// Role is a ConversationEntry's author, per the four-tier hierarchy's
// conversation roles.
type Role string

const (
	RoleUser                Role = "user"
	RoleAssistant           Role = "assistant"
	RoleToolCall            Role = "tool_call"
	RoleToolResult          Role = "tool_result"
	RoleSystemAnnouncement  Role = "system_announcement"
)

// WorkingMemoryCap is the maximum size, in bytes, of an agent's working
// memory document after any update.
const WorkingMemoryCap = 2 * 1024

// DefaultFIFOCapacity is the default number of ConversationEntries held
// in an agent's in-memory FIFO view.
const DefaultFIFOCapacity = 50

// Agent is the identity owning one memory hierarchy and one workspace.
type Agent struct {
	ID                 string
	Name               string
	ModelID            string
	SystemMemoryText   string
	WorkingMemoryText  string
	FIFOCapacity       int
	WorkspaceRoot      string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MemoryEntry is an archival row: durable (content, vector) pair owned
// by exactly one agent.
type MemoryEntry struct {
	ID        string
	AgentID   string
	Content   string
	Vector    []float32
	Metadata  map[string]string
	CreatedAt time.Time
}

// ConversationEntry is one row of an agent's append-only conversation
// log, and the persistence form of the FIFO view.
type ConversationEntry struct {
	ID                string
	AgentID           string
	Role              Role
	Content           string
	ToolName          string
	ToolArgs          map[string]any
	ToolCorrelationID string
	CreatedAt         time.Time
}

// Promotable reports whether this entry is eligible for FIFO-overflow
// promotion to archival memory: non-empty content and a role of user,
// assistant, or tool_result (tool_call and system_announcement rows
// never promote).
func (c ConversationEntry) Promotable() bool {
	if c.Content == "" {
		return false
	}
	switch c.Role {
	case RoleUser, RoleAssistant, RoleToolResult:
		return true
	default:
		return false
	}
}

// ToolCall is the transient record produced by the chat client and
// consumed by the tool dispatcher. It is never persisted as a distinct
// entity — the role=tool_call ConversationEntry is its persistence form.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}
