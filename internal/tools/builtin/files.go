package builtin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"conductor/internal/tools"
)

const maxReadBytes = 10 * 1024 * 1024

// ReadFileArgs are the read_file parameters.
type ReadFileArgs struct {
	Path      string `json:"path" jsonschema:"description=File path relative to the workspace,required"`
	StartLine int    `json:"start_line" jsonschema:"description=First line to return (1-based),minimum=1"`
	EndLine   int    `json:"end_line" jsonschema:"description=Last line to return (inclusive),minimum=1"`
}

// ReadFileTool returns file contents.
type ReadFileTool struct {
	tools.BaseTool
	ws *Workspace
}

// NewReadFileTool creates read_file.
func NewReadFileTool(ws *Workspace) *ReadFileTool {
	return &ReadFileTool{
		BaseTool: tools.BaseTool{Desc: tools.Descriptor{
			Name:        tools.NameReadFile,
			Description: "Read a text file from the workspace, optionally a line range.",
			Kind:        tools.KindRead,
			Params:      tools.BuildParams(ReadFileArgs{}),
		}},
		ws: ws,
	}
}

// Execute implements tools.Tool.
func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	path, err := t.ws.Resolve(tools.StringArg(args, "path"))
	if err != nil {
		return tools.ToolResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return tools.ToolResult{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return tools.NewErrorResult(fmt.Sprintf("cannot read %s: %v", t.ws.Rel(path), unwrapPathErr(err))), nil
	}
	if info.IsDir() {
		return tools.NewErrorResult(fmt.Sprintf("%s is a directory, use list_directory", t.ws.Rel(path))), nil
	}
	if info.Size() > maxReadBytes {
		return tools.NewErrorResult(fmt.Sprintf("%s is too large (%d bytes)", t.ws.Rel(path), info.Size())), nil
	}

	start := tools.IntArg(args, "start_line", 0)
	end := tools.IntArg(args, "end_line", 0)
	if start == 0 && end == 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return tools.NewErrorResult(err.Error()), nil
		}
		return tools.NewSuccessResult(string(data)), nil
	}
	if start == 0 {
		start = 1
	}
	if end != 0 && end < start {
		return tools.ToolResult{}, tools.NewValidationError(t.Name(), "end_line", "must not be before start_line")
	}

	f, err := os.Open(path)
	if err != nil {
		return tools.NewErrorResult(err.Error()), nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxReadBytes)
	for n := 1; scanner.Scan(); n++ {
		if n < start {
			continue
		}
		if end > 0 && n > end {
			break
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return tools.NewErrorResult(err.Error()), nil
	}
	return tools.NewSuccessResult(strings.Join(lines, "\n")), nil
}

// WriteFileArgs are the write_file parameters.
type WriteFileArgs struct {
	Path    string `json:"path" jsonschema:"description=File path relative to the workspace,required"`
	Content string `json:"content" jsonschema:"description=Full file content,required"`
	Append  bool   `json:"append" jsonschema:"description=Append instead of overwrite"`
}

// WriteFileTool creates or overwrites a file.
type WriteFileTool struct {
	tools.BaseTool
	ws *Workspace
}

// NewWriteFileTool creates write_file.
func NewWriteFileTool(ws *Workspace) *WriteFileTool {
	return &WriteFileTool{
		BaseTool: tools.BaseTool{Desc: tools.Descriptor{
			Name:        tools.NameWriteFile,
			Description: "Create or overwrite a file in the workspace. Parent directories are created.",
			Kind:        tools.KindWrite,
			Params:      tools.BuildParams(WriteFileArgs{}),
		}},
		ws: ws,
	}
}

// Execute implements tools.Tool.
func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	path, err := t.ws.Resolve(tools.StringArg(args, "path"))
	if err != nil {
		return tools.ToolResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return tools.ToolResult{}, err
	}
	content := tools.StringArg(args, "content")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return tools.NewErrorResult(fmt.Sprintf("create directory: %v", err)), nil
	}

	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if tools.BoolArg(args, "append") {
		flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return tools.NewErrorResult(fmt.Sprintf("open %s: %v", t.ws.Rel(path), unwrapPathErr(err))), nil
	}
	n, werr := f.WriteString(content)
	cerr := f.Close()
	if werr != nil {
		return tools.NewErrorResult(fmt.Sprintf("write %s: %v", t.ws.Rel(path), werr)), nil
	}
	if cerr != nil {
		return tools.NewErrorResult(fmt.Sprintf("close %s: %v", t.ws.Rel(path), cerr)), nil
	}

	return tools.NewResultWithMetadata(
		fmt.Sprintf("Wrote %d bytes to %s", n, t.ws.Rel(path)),
		map[string]any{"path": t.ws.Rel(path), "bytes": n},
	), nil
}

// EditFileArgs are the edit_file parameters.
type EditFileArgs struct {
	Path    string `json:"path" jsonschema:"description=File path relative to the workspace,required"`
	OldText string `json:"old_text" jsonschema:"description=Exact text to replace; must match once,required"`
	NewText string `json:"new_text" jsonschema:"description=Replacement text"`
}

// EditFileTool replaces one unique occurrence of a text fragment.
type EditFileTool struct {
	tools.BaseTool
	ws *Workspace
}

// NewEditFileTool creates edit_file.
func NewEditFileTool(ws *Workspace) *EditFileTool {
	return &EditFileTool{
		BaseTool: tools.BaseTool{Desc: tools.Descriptor{
			Name:        tools.NameEditFile,
			Description: "Replace a unique fragment of a workspace file with new text.",
			Kind:        tools.KindWrite,
			Params:      tools.BuildParams(EditFileArgs{}),
		}},
		ws: ws,
	}
}

// Execute implements tools.Tool.
func (t *EditFileTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	path, err := t.ws.Resolve(tools.StringArg(args, "path"))
	if err != nil {
		return tools.ToolResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return tools.ToolResult{}, err
	}
	oldText := tools.StringArg(args, "old_text")
	newText := tools.StringArg(args, "new_text")

	info, err := os.Stat(path)
	if err != nil {
		return tools.NewErrorResult(fmt.Sprintf("cannot edit %s: %v", t.ws.Rel(path), unwrapPathErr(err))), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return tools.NewErrorResult(err.Error()), nil
	}
	content := string(data)

	switch count := strings.Count(content, oldText); {
	case count == 0:
		return tools.NewErrorResult(fmt.Sprintf(
			"old_text not found in %s; it must match exactly, including whitespace", t.ws.Rel(path))), nil
	case count > 1:
		return tools.NewErrorResult(fmt.Sprintf(
			"old_text matches %d locations in %s; include more context to make it unique", count, t.ws.Rel(path))), nil
	}

	updated := strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(path, []byte(updated), info.Mode()); err != nil {
		return tools.NewErrorResult(fmt.Sprintf("write %s: %v", t.ws.Rel(path), err)), nil
	}

	return tools.NewResultWithMetadata(
		fmt.Sprintf("Edited %s: replaced %d characters with %d", t.ws.Rel(path), len(oldText), len(newText)),
		map[string]any{"path": t.ws.Rel(path), "delta": len(newText) - len(oldText)},
	), nil
}

// DeleteFileArgs are the delete_file parameters.
type DeleteFileArgs struct {
	Path string `json:"path" jsonschema:"description=File path relative to the workspace,required"`
}

// DeleteFileTool removes a single file.
type DeleteFileTool struct {
	tools.BaseTool
	ws *Workspace
}

// NewDeleteFileTool creates delete_file.
func NewDeleteFileTool(ws *Workspace) *DeleteFileTool {
	return &DeleteFileTool{
		BaseTool: tools.BaseTool{Desc: tools.Descriptor{
			Name:        tools.NameDeleteFile,
			Description: "Delete a single file from the workspace. Directories are refused.",
			Kind:        tools.KindWrite,
			Params:      tools.BuildParams(DeleteFileArgs{}),
		}},
		ws: ws,
	}
}

// Execute implements tools.Tool.
func (t *DeleteFileTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	path, err := t.ws.Resolve(tools.StringArg(args, "path"))
	if err != nil {
		return tools.ToolResult{}, err
	}
	if path == t.ws.Root() {
		return tools.ToolResult{}, tools.NewValidationError(t.Name(), "path", "cannot delete the workspace root")
	}
	if err := ctx.Err(); err != nil {
		return tools.ToolResult{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return tools.NewErrorResult(fmt.Sprintf("cannot delete %s: %v", t.ws.Rel(path), unwrapPathErr(err))), nil
	}
	if info.IsDir() {
		return tools.NewErrorResult(fmt.Sprintf("%s is a directory", t.ws.Rel(path))), nil
	}
	if err := os.Remove(path); err != nil {
		return tools.NewErrorResult(err.Error()), nil
	}
	return tools.NewSuccessResult(fmt.Sprintf("Deleted %s", t.ws.Rel(path))), nil
}

// ListDirectoryArgs are the list_directory parameters.
type ListDirectoryArgs struct {
	Path      string `json:"path" jsonschema:"description=Directory relative to the workspace,default=."`
	Recursive bool   `json:"recursive" jsonschema:"description=Descend into subdirectories"`
	MaxDepth  int    `json:"max_depth" jsonschema:"description=Depth limit when recursive,minimum=1,maximum=10,default=3"`
}

// ListDirectoryTool lists directory entries.
type ListDirectoryTool struct {
	tools.BaseTool
	ws         *Workspace
	maxEntries int
}

// NewListDirectoryTool creates list_directory.
func NewListDirectoryTool(ws *Workspace) *ListDirectoryTool {
	return &ListDirectoryTool{
		BaseTool: tools.BaseTool{Desc: tools.Descriptor{
			Name:        tools.NameListDirectory,
			Description: "List files and directories in the workspace. Directories end with '/'.",
			Kind:        tools.KindRead,
			Params:      tools.BuildParams(ListDirectoryArgs{}),
		}},
		ws:         ws,
		maxEntries: 1000,
	}
}

// Execute implements tools.Tool.
func (t *ListDirectoryTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	p := tools.StringArg(args, "path")
	if p == "" {
		p = "."
	}
	root, err := t.ws.Resolve(p)
	if err != nil {
		return tools.ToolResult{}, err
	}
	recursive := tools.BoolArg(args, "recursive")
	maxDepth := tools.IntArg(args, "max_depth", 3)

	var entries []string
	truncated := false
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == root {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		depth := strings.Count(filepath.ToSlash(rel), "/") + 1
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if len(entries) >= t.maxEntries {
			truncated = true
			return filepath.SkipAll
		}
		name := filepath.ToSlash(rel)
		if d.IsDir() {
			name += "/"
		}
		entries = append(entries, name)
		if d.IsDir() && (!recursive || depth >= maxDepth) {
			return filepath.SkipDir
		}
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return tools.ToolResult{}, walkErr
		}
		return tools.NewErrorResult(fmt.Sprintf("cannot list %s: %v", t.ws.Rel(root), unwrapPathErr(walkErr))), nil
	}

	sort.Strings(entries)
	if len(entries) == 0 {
		return tools.NewSuccessResult("(empty directory)"), nil
	}
	out := strings.Join(entries, "\n")
	if truncated {
		out += fmt.Sprintf("\n... (truncated at %d entries)", t.maxEntries)
	}
	return tools.NewResultWithMetadata(out, map[string]any{"count": len(entries)}), nil
}

// SearchFilesArgs are the search_files parameters.
type SearchFilesArgs struct {
	Pattern    string `json:"pattern" jsonschema:"description=Regular expression to search for,required"`
	Path       string `json:"path" jsonschema:"description=Directory to search,default=."`
	MaxResults int    `json:"max_results" jsonschema:"description=Maximum matching lines,minimum=1,maximum=500,default=50"`
}

// SearchFilesTool greps workspace files.
type SearchFilesTool struct {
	tools.BaseTool
	ws *Workspace
}

// NewSearchFilesTool creates search_files.
func NewSearchFilesTool(ws *Workspace) *SearchFilesTool {
	return &SearchFilesTool{
		BaseTool: tools.BaseTool{Desc: tools.Descriptor{
			Name:        tools.NameSearchFiles,
			Description: "Search workspace files for lines matching a regular expression. Returns path:line: text.",
			Kind:        tools.KindRead,
			Params:      tools.BuildParams(SearchFilesArgs{}),
		}},
		ws: ws,
	}
}

// Execute implements tools.Tool.
func (t *SearchFilesTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	re, err := regexp.Compile(tools.StringArg(args, "pattern"))
	if err != nil {
		return tools.ToolResult{}, tools.NewValidationError(t.Name(), "pattern", err.Error())
	}
	p := tools.StringArg(args, "path")
	if p == "" {
		p = "."
	}
	root, err := t.ws.Resolve(p)
	if err != nil {
		return tools.ToolResult{}, err
	}
	limit := tools.IntArg(args, "max_results", 50)

	var matches []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if len(matches) >= limit {
			return filepath.SkipAll
		}
		matches = append(matches, grepFile(path, t.ws.Rel(path), re, limit-len(matches))...)
		return nil
	})
	if walkErr != nil {
		return tools.ToolResult{}, walkErr
	}

	if len(matches) == 0 {
		return tools.NewSuccessResult("No matches found."), nil
	}
	return tools.NewResultWithMetadata(strings.Join(matches, "\n"), map[string]any{"matches": len(matches)}), nil
}

func grepFile(path, display string, re *regexp.Regexp, limit int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan() && len(out) < limit; n++ {
		line := scanner.Text()
		if strings.ContainsRune(line, 0) {
			return nil // binary
		}
		if re.MatchString(line) {
			out = append(out, fmt.Sprintf("%s:%d: %s", display, n, strings.TrimSpace(line)))
		}
	}
	return out
}

func unwrapPathErr(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}
