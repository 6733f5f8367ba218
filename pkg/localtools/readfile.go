// Package localtools adapts the teacher's built-in file/command/search
// tools into toolkernel.CallableTool implementations, scoped to a single
// working directory and guarded against path traversal.
package localtools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
	"github.com/kadirpekel/coderkernel/pkg/toolkernel"
)

// ReadFileTool reads a file's contents, optionally restricted to a line
// range, rooted at WorkingDirectory.
type ReadFileTool struct {
	WorkingDirectory string
	MaxFileSize      int64
}

// NewReadFileTool returns a ReadFileTool rooted at dir with a 10MB
// default size cap.
func NewReadFileTool(dir string) *ReadFileTool {
	return &ReadFileTool{WorkingDirectory: dir, MaxFileSize: 10 << 20}
}

func (t *ReadFileTool) ID() string          { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file, optionally restricted to a line range." }

func (t *ReadFileTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":       map[string]any{"type": "string"},
			"start_line": map[string]any{"type": "number"},
			"end_line":   map[string]any{"type": "number"},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed, use relative paths")
	}
	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("directory traversal not allowed")
	}
	absPath, err := filepath.Abs(filepath.Join(t.WorkingDirectory, cleaned))
	if err != nil {
		return "", err
	}
	absWorkDir, err := filepath.Abs(t.WorkingDirectory)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absPath, absWorkDir) {
		return "", fmt.Errorf("path escapes working directory")
	}
	return absPath, nil
}

func (t *ReadFileTool) Call(ctx context.Context, args map[string]any) (toolkernel.Result, error) {
	const op = "localtools.ReadFileTool.Call"
	path, _ := args["path"].(string)
	if path == "" {
		return toolkernel.Result{Error: "path parameter is required"}, nil
	}

	fullPath, err := t.resolve(path)
	if err != nil {
		return toolkernel.Result{Error: err.Error()}, nil
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return toolkernel.Result{}, kernelerr.Wrap(op, kernelerr.NotFound, err)
	}
	if info.Size() > t.MaxFileSize {
		return toolkernel.Result{Error: fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), t.MaxFileSize)}, nil
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return toolkernel.Result{}, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}

	lines := strings.Split(string(content), "\n")
	startLine, endLine := 1, len(lines)
	if sl, ok := numberArg(args["start_line"]); ok && sl >= 1 {
		startLine = sl
	}
	if el, ok := numberArg(args["end_line"]); ok && el <= len(lines) {
		endLine = el
	}
	if startLine > endLine {
		return toolkernel.Result{Error: fmt.Sprintf("invalid range: start_line (%d) > end_line (%d)", startLine, endLine)}, nil
	}

	selected := lines[startLine-1 : min(endLine, len(lines))]
	return toolkernel.Result{
		Content: strings.Join(selected, "\n"),
		Metadata: map[string]any{
			"path":        path,
			"total_lines": len(lines),
			"start_line":  startLine,
			"end_line":    endLine,
		},
	}, nil
}

func numberArg(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}
