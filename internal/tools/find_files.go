package tools

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/hierarchical-memory-engine/internal/model"
	"github.com/rcliao/hierarchical-memory-engine/internal/sandbox"
)

const maxFindResults = 1000

// FindFilesTool handles find_files.
type FindFilesTool struct {
	sb *sandbox.Sandbox
}

// NewFindFilesTool creates a FindFilesTool scoped to sb.
func NewFindFilesTool(sb *sandbox.Sandbox) *FindFilesTool {
	return &FindFilesTool{sb: sb}
}

func (t *FindFilesTool) Definition() mcp.Tool {
	return mcp.NewTool("find_files",
		mcp.WithDescription("Find files by glob pattern within the workspace, recursively. Symlinks are not followed."),
		mcp.WithString("glob", mcp.Required(), mcp.Description("Glob pattern matched against each file's base name, e.g. '*.go'")),
		mcp.WithString("root", mcp.Description("Subdirectory to search from (default: workspace root)")),
	)
}

func (t *FindFilesTool) Handle(ctx context.Context, call model.ToolCall) (*mcp.CallToolResult, error) {
	pattern := stringArg(call, "glob", "")
	if pattern == "" {
		return mcp.NewToolResultError("'glob' is required"), nil
	}
	rootArg := stringArg(call, "root", ".")

	rootResolved, err := t.sb.Resolve(rootArg, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Walk collects one result past the cap so it can tell "exactly
	// maxFindResults matches" apart from "more exist beyond the cap"
	// (§8: 1000 results returns without a marker, 1001 returns 1000
	// with one).
	var matches []string
	walkErr := filepath.WalkDir(rootResolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort walk, skip unreadable entries
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			rel, relErr := filepath.Rel(t.sb.Root(), path)
			if relErr != nil {
				rel = path
			}
			matches = append(matches, rel)
			if len(matches) > maxFindResults {
				return filepath.SkipAll
			}
		}
		return nil
	})
	if walkErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error searching for files: %v", walkErr)), nil
	}

	if len(matches) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No files found matching %q", pattern)), nil
	}

	truncated := len(matches) > maxFindResults
	if truncated {
		matches = matches[:maxFindResults]
	}
	out := strings.Join(matches, "\n")
	if truncated {
		out += fmt.Sprintf("\n[truncated: showing first %d results]", maxFindResults)
	}
	return mcp.NewToolResultText(out), nil
}
