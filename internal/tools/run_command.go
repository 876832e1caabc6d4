package tools

import (
	"context"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/hierarchical-memory-engine/internal/cmdpolicy"
	"github.com/rcliao/hierarchical-memory-engine/internal/model"
)

// RunCommandTool handles run_command: a whitelisted, no-shell
// subprocess launch under §4.5's policy.
type RunCommandTool struct {
	workspaceRoot string
}

// NewRunCommandTool creates a RunCommandTool rooted at workspaceRoot.
func NewRunCommandTool(workspaceRoot string) *RunCommandTool {
	return &RunCommandTool{workspaceRoot: workspaceRoot}
}

func (t *RunCommandTool) Definition() mcp.Tool {
	return mcp.NewTool("run_command",
		mcp.WithDescription("Run a whitelisted shell command (ls, cat, head, tail, wc, grep, find, pwd, whoami, date, python3, pytest, read-only git) in the workspace. No pipes, redirects, or chaining."),
		mcp.WithString("command", mcp.Required(), mcp.Description("The command line to run")),
	)
}

func (t *RunCommandTool) Handle(ctx context.Context, call model.ToolCall) (*mcp.CallToolResult, error) {
	command := stringArg(call, "command", "")
	if command == "" {
		return mcp.NewToolResultError("'command' is required"), nil
	}

	result, err := cmdpolicy.Run(ctx, command, t.workspaceRoot, cmdpolicy.DefaultTimeout)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	log.Printf("run_command: %q took %dms (exit=%d timed_out=%v)", command, result.DurationMs, result.ExitCode, result.TimedOut)

	output := result.Output
	if result.Truncated {
		output += "\n[output truncated]"
	}
	if result.TimedOut {
		// The process never ran to completion, so there's no real exit
		// code to report alongside the timeout marker already in output.
		return mcp.NewToolResultText(output), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\nExit code: %d", output, result.ExitCode)), nil
}
