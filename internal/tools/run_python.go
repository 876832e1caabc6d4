package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/hierarchical-memory-engine/internal/cmdpolicy"
	"github.com/rcliao/hierarchical-memory-engine/internal/model"
)

// RunPythonTool handles run_python: a `python3 -c` subprocess run with
// the workspace as its working directory and a timeout, distinct from
// run_command's whitelist check since the code argument
// carries arbitrary Python source rather than a tokenized command line.
type RunPythonTool struct {
	workspaceRoot string
}

// NewRunPythonTool creates a RunPythonTool rooted at workspaceRoot.
func NewRunPythonTool(workspaceRoot string) *RunPythonTool {
	return &RunPythonTool{workspaceRoot: workspaceRoot}
}

func (t *RunPythonTool) Definition() mcp.Tool {
	return mcp.NewTool("run_python",
		mcp.WithDescription("Run Python code via 'python3 -c' with the workspace as the working directory. Network and filesystem access are not restricted."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Python source to execute")),
	)
}

func (t *RunPythonTool) Handle(ctx context.Context, call model.ToolCall) (*mcp.CallToolResult, error) {
	code := stringArg(call, "code", "")
	if code == "" {
		return mcp.NewToolResultError("'code' is required"), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, cmdpolicy.DefaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "python3", "-c", code)
	cmd.Dir = t.workspaceRoot

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	out := buf.String()
	if runCtx.Err() == context.DeadlineExceeded {
		return mcp.NewToolResultText(fmt.Sprintf("%s\n[timed out after %s]", out, cmdpolicy.DefaultTimeout)), nil
	}
	if out == "" {
		out = "Code executed successfully (no output)"
	}
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); !ok {
			return mcp.NewToolResultError(fmt.Sprintf("error executing python3: %v", runErr)), nil
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n(%dms)", out, elapsed.Milliseconds())), nil
}
