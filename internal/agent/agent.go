// Package agent drives a single user turn through the memory engine's
// step loop (§4.7): idle -> awaiting_model -> executing_tools ->
// terminal, dispatching tool calls and persisting every FIFO append
// along the way.
package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/hierarchical-memory-engine/internal/chat"
	memcontext "github.com/rcliao/hierarchical-memory-engine/internal/context"
	"github.com/rcliao/hierarchical-memory-engine/internal/fifo"
	"github.com/rcliao/hierarchical-memory-engine/internal/idgen"
	"github.com/rcliao/hierarchical-memory-engine/internal/model"
	"github.com/rcliao/hierarchical-memory-engine/internal/tools"
	"github.com/rcliao/hierarchical-memory-engine/internal/workingmem"
)

// State is one of the step loop's four states.
type State string

const (
	StateIdle           State = "idle"
	StateAwaitingModel  State = "awaiting_model"
	StateExecutingTools State = "executing_tools"
	StateTerminal       State = "terminal"
)

// DefaultToolIterationCeiling bounds how many awaiting_model ->
// executing_tools round trips one turn may take before the engine
// forces a final, tool-free answer (§4.7).
const DefaultToolIterationCeiling = 8

// Temperature is the sampling temperature passed to the chat client on
// every call. The engine does not expose this as a per-turn knob.
const Temperature = 0.7

// Engine drives the step loop for one agent.
type Engine struct {
	AgentID               string
	SystemMemory          string
	Chat                  chat.Client
	FIFO                  *fifo.Store
	WorkingMemory         *workingmem.Store
	Tools                 *tools.Registry
	Assembler             *memcontext.Assembler
	ToolIterationCeiling  int

	state State
}

// New creates an Engine for one agent. ceiling <= 0 uses the default.
func New(agentID, systemMemory string, chatClient chat.Client, fifoStore *fifo.Store, wm *workingmem.Store, registry *tools.Registry, assembler *memcontext.Assembler, ceiling int) *Engine {
	if ceiling <= 0 {
		ceiling = DefaultToolIterationCeiling
	}
	return &Engine{
		AgentID:              agentID,
		SystemMemory:         systemMemory,
		Chat:                 chatClient,
		FIFO:                 fifoStore,
		WorkingMemory:        wm,
		Tools:                registry,
		Assembler:            assembler,
		ToolIterationCeiling: ceiling,
		state:                StateIdle,
	}
}

// State returns the engine's current state, chiefly for observability
// and tests.
func (e *Engine) State() State {
	return e.state
}

// toolSchemas converts the registry's mcp.Tool definitions into the
// chat client's schema shape.
func (e *Engine) toolSchemas() []chat.ToolSchema {
	defs := e.Tools.Definitions()
	out := make([]chat.ToolSchema, len(defs))
	for i, d := range defs {
		out[i] = chat.ToolSchema{
			Name:        d.Name,
			Description: d.Description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": d.InputSchema.Properties,
				"required":   d.InputSchema.Required,
			},
		}
	}
	return out
}

// Step drives one user turn to completion and returns the assistant's
// terminal text (§4.7). If the loop fails to reach a terminal answer
// (chat client failure, assembler failure) the user row remains
// persisted and the error surfaces to the caller; no half-assistant
// row is written.
func (e *Engine) Step(ctx context.Context, userText string) (string, error) {
	if e.state != StateIdle && e.state != StateTerminal {
		return "", fmt.Errorf("agent: Step called while engine is in state %q", e.state)
	}

	if err := e.FIFO.Append(ctx, e.AgentID, model.ConversationEntry{
		ID: idgen.New(), AgentID: e.AgentID, Role: model.RoleUser, Content: userText,
	}); err != nil {
		return "", fmt.Errorf("agent: append user turn: %w", err)
	}
	e.state = StateAwaitingModel

	for iteration := 0; ; iteration++ {
		forceTerminal := iteration >= e.ToolIterationCeiling
		if forceTerminal {
			if err := e.FIFO.Append(ctx, e.AgentID, model.ConversationEntry{
				ID: idgen.New(), AgentID: e.AgentID, Role: model.RoleSystemAnnouncement,
				Content: "tool iteration limit reached",
			}); err != nil {
				return "", fmt.Errorf("agent: append iteration-limit notice: %w", err)
			}
		}

		reply, err := e.callModel(ctx)
		if err != nil {
			return "", err
		}

		if len(reply.ToolCalls) == 0 || forceTerminal {
			if err := e.FIFO.Append(ctx, e.AgentID, model.ConversationEntry{
				ID: idgen.New(), AgentID: e.AgentID, Role: model.RoleAssistant, Content: reply.Text,
			}); err != nil {
				return "", fmt.Errorf("agent: append assistant reply: %w", err)
			}
			e.state = StateTerminal
			return reply.Text, nil
		}

		if err := e.FIFO.Append(ctx, e.AgentID, model.ConversationEntry{
			ID: idgen.New(), AgentID: e.AgentID, Role: model.RoleAssistant, Content: reply.Text,
		}); err != nil {
			return "", fmt.Errorf("agent: append assistant reply: %w", err)
		}

		e.state = StateExecutingTools
		for _, call := range reply.ToolCalls {
			if err := e.FIFO.Append(ctx, e.AgentID, model.ConversationEntry{
				ID: idgen.New(), AgentID: e.AgentID, Role: model.RoleToolCall,
				ToolName: call.Name, ToolArgs: call.Arguments, ToolCorrelationID: call.ID,
			}); err != nil {
				return "", fmt.Errorf("agent: append tool_call: %w", err)
			}

			result, err := e.Tools.Dispatch(ctx, call)
			if err != nil {
				// Dispatch is documented never to return an error; guard
				// anyway so a future change can't silently crash the loop.
				log.Printf("agent: tool dispatch returned an unexpected error for %s: %v", call.Name, err)
				result = nil
			}

			if err := e.FIFO.Append(ctx, e.AgentID, model.ConversationEntry{
				ID: idgen.New(), AgentID: e.AgentID, Role: model.RoleToolResult,
				Content: toolResultText(result), ToolCorrelationID: call.ID,
			}); err != nil {
				return "", fmt.Errorf("agent: append tool_result: %w", err)
			}
		}
		e.state = StateAwaitingModel
	}
}

func (e *Engine) callModel(ctx context.Context) (chat.Reply, error) {
	wmDoc, err := e.WorkingMemory.Get(e.AgentID)
	if err != nil {
		return chat.Reply{}, fmt.Errorf("agent: load working memory: %w", err)
	}

	messages, err := e.Assembler.Assemble(e.SystemMemory, wmDoc, e.toolSchemas(), e.FIFO.Items(e.AgentID))
	if err != nil {
		return chat.Reply{}, fmt.Errorf("agent: assemble context: %w", err)
	}

	reply, err := e.Chat.Chat(ctx, messages, e.toolSchemas(), Temperature)
	if err != nil {
		return chat.Reply{}, fmt.Errorf("agent: chat client call: %w", err)
	}
	return reply, nil
}

// toolResultText extracts the text a tool reported, whether it
// succeeded or returned an error result — either way the text goes
// into the FIFO as the tool_result entry's content so the model sees
// it on the next turn (§4.6).
func toolResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
