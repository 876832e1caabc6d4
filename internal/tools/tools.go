// Package tools implements the closed set of twelve tools an agent may
// invoke (§4.6): file, shell, web, and memory operations, each
// returning a plain result string so the calling model sees failures
// as data rather than as a crashed step loop.
package tools

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/hierarchical-memory-engine/internal/model"
)

// Tool is one registered operation: its MCP schema plus a handler that
// receives the engine's own structured call rather than a raw MCP
// wire request (see DESIGN.md's "API surface decisions").
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, call model.ToolCall) (*mcp.CallToolResult, error)
}

// Registry is the closed dispatcher over the fixed tool set.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool under its schema name. Registering the same
// name twice is a programming error and panics at startup.
func (r *Registry) Register(t Tool) {
	name := t.Definition().Name
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("tools: duplicate registration for %q", name))
	}
	r.tools[name] = t
	r.order = append(r.order, name)
}

// Definitions returns the schema for every registered tool, in
// registration order, for the context assembler to hand to the chat
// client on every call (§4.3, §6).
func (r *Registry) Definitions() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Definition())
	}
	return out
}

// Dispatch looks up call.Name, validates nothing further itself (each
// tool validates its own argument shape), and executes it. Unknown
// names and any panic inside a tool's Handle are converted to an error
// result string — dispatch never propagates a failure to the step
// loop (§4.6). Every call's duration and outcome (success, error, or
// panic) is logged for observability, uniformly across all twelve
// tools (§4.6: "Each tool call records its duration and outcome for
// observability").
func (r *Registry) Dispatch(ctx context.Context, call model.ToolCall) (result *mcp.CallToolResult, err error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		if p := recover(); p != nil {
			result = mcp.NewToolResultError(fmt.Sprintf("tool execution failed: %v", p))
			err = nil
			outcome = "panic"
		}
		log.Printf("tools: dispatch name=%s outcome=%s duration_ms=%d", call.Name, outcome, time.Since(start).Milliseconds())
	}()

	t, ok := r.tools[call.Name]
	if !ok {
		outcome = "error"
		return mcp.NewToolResultError(fmt.Sprintf("unknown tool %q", call.Name)), nil
	}
	res, handleErr := t.Handle(ctx, call)
	if handleErr != nil {
		outcome = "error"
		return mcp.NewToolResultError(fmt.Sprintf("tool execution failed: %v", handleErr)), nil
	}
	if res != nil && res.IsError {
		outcome = "error"
	}
	return res, nil
}
