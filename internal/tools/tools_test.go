package tools_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rcliao/hierarchical-memory-engine/internal/archival"
	"github.com/rcliao/hierarchical-memory-engine/internal/idgen"
	"github.com/rcliao/hierarchical-memory-engine/internal/model"
	"github.com/rcliao/hierarchical-memory-engine/internal/sandbox"
	"github.com/rcliao/hierarchical-memory-engine/internal/store"
	"github.com/rcliao/hierarchical-memory-engine/internal/tools"
	"github.com/rcliao/hierarchical-memory-engine/internal/workingmem"

	"github.com/mark3labs/mcp-go/mcp"
)

type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Dims() int { return f.dims }
func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dims), nil
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestRegistry_DispatchUnknownTool(t *testing.T) {
	r := tools.NewRegistry()
	res, err := r.Dispatch(context.Background(), model.ToolCall{Name: "does_not_exist"})
	if err != nil {
		t.Fatalf("Dispatch should never return an error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected error result for unknown tool")
	}
}

func TestReadWriteEditFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	sb, err := sandbox.New(t.TempDir())
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}

	r := tools.NewRegistry()
	r.Register(tools.NewWriteFileTool(sb))
	r.Register(tools.NewReadFileTool(sb))
	r.Register(tools.NewEditFileTool(sb))

	writeRes, err := r.Dispatch(ctx, model.ToolCall{Name: "write_file", Arguments: map[string]any{
		"path": "notes.txt", "content": "hello world",
	}})
	if err != nil {
		t.Fatalf("Dispatch write_file: %v", err)
	}
	if writeRes.IsError {
		t.Fatalf("write_file returned error: %#v", writeRes)
	}

	readRes, err := r.Dispatch(ctx, model.ToolCall{Name: "read_file", Arguments: map[string]any{"path": "notes.txt"}})
	if err != nil {
		t.Fatalf("Dispatch read_file: %v", err)
	}
	if readRes.IsError {
		t.Fatalf("read_file returned error: %#v", readRes)
	}
	if !strings.Contains(resultText(readRes), "hello world") {
		t.Fatalf("read_file result = %q, want it to contain %q", resultText(readRes), "hello world")
	}

	editRes, err := r.Dispatch(ctx, model.ToolCall{Name: "edit_file", Arguments: map[string]any{
		"path": "notes.txt", "old": "world", "new": "there",
	}})
	if err != nil {
		t.Fatalf("Dispatch edit_file: %v", err)
	}
	if editRes.IsError {
		t.Fatalf("edit_file returned error: %#v", editRes)
	}

	data, err := os.ReadFile(filepath.Join(sb.Root(), "notes.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello there" {
		t.Fatalf("file content = %q, want %q", string(data), "hello there")
	}
}

func TestReadFile_RejectsPathOutsideSandbox(t *testing.T) {
	ctx := context.Background()
	sb, err := sandbox.New(t.TempDir())
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	r := tools.NewRegistry()
	r.Register(tools.NewReadFileTool(sb))

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "read_file", Arguments: map[string]any{"path": "../../etc/passwd"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected error for path escaping sandbox")
	}
}

func TestUpdateWorkingMemory_UpsertsField(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer db.Close()

	a := model.Agent{ID: idgen.New(), Name: "agent", ModelID: "x", FIFOCapacity: 10, WorkspaceRoot: t.TempDir()}
	if err := db.CreateAgent(a); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	wm := workingmem.New(db)
	r := tools.NewRegistry()
	r.Register(tools.NewUpdateWorkingMemoryTool(wm, a.ID))

	if _, err := r.Dispatch(ctx, model.ToolCall{Name: "update_working_memory", Arguments: map[string]any{
		"field": "user_name", "value": "Ada",
	}}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if _, err := r.Dispatch(ctx, model.ToolCall{Name: "update_working_memory", Arguments: map[string]any{
		"field": "user_name", "value": "Grace",
	}}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	got, err := wm.Get(a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if strings.Count(got, "user_name:") != 1 {
		t.Fatalf("expected exactly one user_name line, got %q", got)
	}
	if !strings.Contains(got, "user_name: Grace") {
		t.Fatalf("expected updated value, got %q", got)
	}
}

func TestSaveAndSearchMemory(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer db.Close()

	a := model.Agent{ID: idgen.New(), Name: "agent", ModelID: "x", FIFOCapacity: 10, WorkspaceRoot: t.TempDir()}
	if err := db.CreateAgent(a); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	arch := archival.New(db, &fakeEmbedder{dims: 3})
	r := tools.NewRegistry()
	r.Register(tools.NewSaveMemoryTool(arch, a.ID))
	r.Register(tools.NewSearchMemoryTool(arch, a.ID))

	if _, err := r.Dispatch(ctx, model.ToolCall{Name: "save_memory", Arguments: map[string]any{"content": "likes tea"}}); err != nil {
		t.Fatalf("Dispatch save_memory: %v", err)
	}

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "search_memory", Arguments: map[string]any{"query": "beverages"}})
	if err != nil {
		t.Fatalf("Dispatch search_memory: %v", err)
	}
	if res.IsError {
		t.Fatalf("search_memory returned error: %#v", res)
	}
}

func TestFindFiles_ExactCapReturnsNoMarker(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for i := 0; i < 1000; i++ {
		name := filepath.Join(dir, fmt.Sprintf("file-%04d.txt", i))
		if err := os.WriteFile(name, nil, 0600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	sb, err := sandbox.New(dir)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	r := tools.NewRegistry()
	r.Register(tools.NewFindFilesTool(sb))

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "find_files", Arguments: map[string]any{"glob": "*.txt"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.IsError {
		t.Fatalf("find_files returned error: %#v", res)
	}
	text := resultText(res)
	if got := len(strings.Split(strings.TrimSpace(text), "\n")); got != 1000 {
		t.Fatalf("got %d lines, want 1000", got)
	}
	if strings.Contains(text, "truncated") {
		t.Fatalf("expected no truncation marker at exactly the cap, got %q", text)
	}
}

func TestFindFiles_OverCapReturnsTruncationMarker(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for i := 0; i < 1001; i++ {
		name := filepath.Join(dir, fmt.Sprintf("file-%04d.txt", i))
		if err := os.WriteFile(name, nil, 0600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	sb, err := sandbox.New(dir)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	r := tools.NewRegistry()
	r.Register(tools.NewFindFilesTool(sb))

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "find_files", Arguments: map[string]any{"glob": "*.txt"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.IsError {
		t.Fatalf("find_files returned error: %#v", res)
	}
	text := resultText(res)
	if !strings.Contains(text, "truncated") {
		t.Fatalf("expected a truncation marker past the cap, got %q", text)
	}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	// Last line is the marker, so exactly 1000 path lines precede it.
	if got := len(lines) - 1; got != 1000 {
		t.Fatalf("got %d path lines, want 1000", got)
	}
}

func TestSearchInFiles_FindsMatchingLine(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("line one\nfavorite color is purple\nline three\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sb, err := sandbox.New(dir)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	r := tools.NewRegistry()
	r.Register(tools.NewSearchInFilesTool(sb))

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "search_in_files", Arguments: map[string]any{"regex": "favorite"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.IsError {
		t.Fatalf("search_in_files returned error: %#v", res)
	}
	if !strings.Contains(resultText(res), "notes.txt:2:favorite color is purple") {
		t.Fatalf("result = %q, want a path:line:text match", resultText(res))
	}
}

func TestSearchInFiles_NoMatchesIsSuccessNotError(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("nothing relevant here\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sb, err := sandbox.New(dir)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	r := tools.NewRegistry()
	r.Register(tools.NewSearchInFilesTool(sb))

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "search_in_files", Arguments: map[string]any{"regex": "nonexistentpattern"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected success result for zero matches, got error: %#v", res)
	}
	if !strings.Contains(resultText(res), "No matches") {
		t.Fatalf("result = %q, want a no-matches message", resultText(res))
	}
}

func TestDeleteFile_RemovesFileAndDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "gone.txt"), []byte("bye"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "subdir", "nested"), 0700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	sb, err := sandbox.New(dir)
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	r := tools.NewRegistry()
	r.Register(tools.NewDeleteFileTool(sb))

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "delete_file", Arguments: map[string]any{"path": "gone.txt"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.IsError {
		t.Fatalf("delete_file returned error: %#v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "gone.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected gone.txt to be removed, stat err = %v", err)
	}

	res, err = r.Dispatch(ctx, model.ToolCall{Name: "delete_file", Arguments: map[string]any{"path": "subdir"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.IsError {
		t.Fatalf("delete_file returned error for directory: %#v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "subdir")); !os.IsNotExist(err) {
		t.Fatalf("expected subdir to be recursively removed, stat err = %v", err)
	}
}

func TestDeleteFile_MissingPathIsError(t *testing.T) {
	ctx := context.Background()
	sb, err := sandbox.New(t.TempDir())
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	r := tools.NewRegistry()
	r.Register(tools.NewDeleteFileTool(sb))

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "delete_file", Arguments: map[string]any{"path": "nope.txt"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected error for a path that doesn't exist")
	}
}

func TestRunCommand_ExecutesWhitelistedCommand(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := tools.NewRegistry()
	r.Register(tools.NewRunCommandTool(dir))

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "run_command", Arguments: map[string]any{"command": "pwd"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.IsError {
		t.Fatalf("run_command returned error: %#v", res)
	}
	if !strings.Contains(resultText(res), "Exit code: 0") {
		t.Fatalf("result = %q, want an exit code line", resultText(res))
	}
}

func TestRunCommand_RejectsDisallowedExecutable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := tools.NewRegistry()
	r.Register(tools.NewRunCommandTool(dir))

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "run_command", Arguments: map[string]any{"command": "rm -rf /"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected error for a non-whitelisted executable")
	}
}

func TestRunCommand_RejectsShellMetacharacters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := tools.NewRegistry()
	r.Register(tools.NewRunCommandTool(dir))

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "run_command", Arguments: map[string]any{"command": "ls ; cat /etc/passwd"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected error for a command containing a shell operator")
	}
}

func TestRunCommand_TimeoutOmitsMisleadingExitCode(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := tools.NewRegistry()
	r.Register(tools.NewRunCommandTool(dir))

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "run_command", Arguments: map[string]any{
		"command": `python3 -c "__import__('time').sleep(60)"`,
	}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.IsError {
		t.Fatalf("run_command returned error: %#v", res)
	}
	text := resultText(res)
	if !strings.Contains(text, "timed out") {
		t.Fatalf("result = %q, want a timeout marker", text)
	}
	if strings.Contains(text, "Exit code:") {
		t.Fatalf("result = %q, should not report an exit code for a timed-out process", text)
	}
}

func TestRunCommand_TruncatesOutputPastCap(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// One byte over the 1 MiB combined-output cap cmdpolicy enforces.
	big := strings.Repeat("x", (1<<20)+1)
	if err := os.WriteFile(filepath.Join(dir, "big.txt"), []byte(big), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r := tools.NewRegistry()
	r.Register(tools.NewRunCommandTool(dir))

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "run_command", Arguments: map[string]any{"command": "cat big.txt"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.IsError {
		t.Fatalf("run_command returned error: %#v", res)
	}
	text := resultText(res)
	if !strings.Contains(text, "truncated") {
		t.Fatalf("expected a truncation marker for output past the cap, got result of length %d", len(text))
	}
}

func TestRunPython_ExecutesCodeAndCapturesOutput(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := tools.NewRegistry()
	r.Register(tools.NewRunPythonTool(dir))

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "run_python", Arguments: map[string]any{"code": "print('hello from python')"}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.IsError {
		t.Fatalf("run_python returned error: %#v", res)
	}
	if !strings.Contains(resultText(res), "hello from python") {
		t.Fatalf("result = %q, want the printed output", resultText(res))
	}
}

func TestRunPython_TimesOutLongRunningCode(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := tools.NewRegistry()
	r.Register(tools.NewRunPythonTool(dir))

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "run_python", Arguments: map[string]any{
		"code": "import time; time.sleep(60)",
	}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(resultText(res), "timed out") {
		t.Fatalf("result = %q, want a timeout marker", resultText(res))
	}
}

func TestFetchURL_GetsResponseBody(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		fmt.Fprint(w, "pong")
	}))
	defer srv.Close()

	r := tools.NewRegistry()
	r.Register(tools.NewFetchURLTool())

	res, err := r.Dispatch(ctx, model.ToolCall{Name: "fetch_url", Arguments: map[string]any{"url": srv.URL}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.IsError {
		t.Fatalf("fetch_url returned error: %#v", res)
	}
	if !strings.Contains(resultText(res), "pong") {
		t.Fatalf("result = %q, want the response body", resultText(res))
	}
}

func TestFetchURL_RejectsDisallowedScheme(t *testing.T) {
	ctx := context.Background()
	r := tools.NewRegistry()
	r.Register(tools.NewFetchURLTool())

	for _, raw := range []string{"ftp://example.com/file", "file:///etc/passwd", "example.com/no-scheme"} {
		res, err := r.Dispatch(ctx, model.ToolCall{Name: "fetch_url", Arguments: map[string]any{"url": raw}})
		if err != nil {
			t.Fatalf("Dispatch(%q): %v", raw, err)
		}
		if !res.IsError {
			t.Fatalf("expected error for disallowed scheme in %q", raw)
		}
	}
}
