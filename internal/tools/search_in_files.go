package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/hierarchical-memory-engine/internal/model"
	"github.com/rcliao/hierarchical-memory-engine/internal/sandbox"
)

const maxSearchResults = 1000

// SearchInFilesTool handles search_in_files.
type SearchInFilesTool struct {
	sb *sandbox.Sandbox
}

// NewSearchInFilesTool creates a SearchInFilesTool scoped to sb.
func NewSearchInFilesTool(sb *sandbox.Sandbox) *SearchInFilesTool {
	return &SearchInFilesTool{sb: sb}
}

func (t *SearchInFilesTool) Definition() mcp.Tool {
	return mcp.NewTool("search_in_files",
		mcp.WithDescription("Search file contents by regular expression within the workspace, like grep."),
		mcp.WithString("regex", mcp.Required(), mcp.Description("Regular expression to search for")),
		mcp.WithString("file_glob", mcp.Description("Glob pattern matched against each file's base name (default: '*')")),
		mcp.WithString("root", mcp.Description("Subdirectory to search from (default: workspace root)")),
	)
}

func (t *SearchInFilesTool) Handle(ctx context.Context, call model.ToolCall) (*mcp.CallToolResult, error) {
	pattern := stringArg(call, "regex", "")
	if pattern == "" {
		return mcp.NewToolResultError("'regex' is required"), nil
	}
	fileGlob := stringArg(call, "file_glob", "*")
	rootArg := stringArg(call, "root", ".")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid regex: %v", err)), nil
	}

	rootResolved, err := t.sb.Resolve(rootArg, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var results []string
	walkErr := filepath.WalkDir(rootResolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil || len(results) >= maxSearchResults {
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
		if ok, _ := filepath.Match(fileGlob, d.Name()); !ok {
			return nil
		}

		f, openErr := os.Open(path)
		if openErr != nil {
			return nil
		}
		defer f.Close()

		rel, relErr := filepath.Rel(t.sb.Root(), path)
		if relErr != nil {
			rel = path
		}

		scanner := bufio.NewScanner(f)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			if re.MatchString(scanner.Text()) {
				results = append(results, fmt.Sprintf("%s:%d:%s", rel, lineNum, scanner.Text()))
				if len(results) >= maxSearchResults {
					break
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error searching files: %v", walkErr)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No matches found for %q", pattern)), nil
	}
	return mcp.NewToolResultText(strings.Join(results, "\n")), nil
}
