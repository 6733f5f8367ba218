package localtools

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
	"github.com/kadirpekel/coderkernel/pkg/toolkernel"
)

// WriteFileTool creates or overwrites a file rooted at WorkingDirectory,
// optionally leaving a ".bak" backup of any file it overwrites.
type WriteFileTool struct {
	WorkingDirectory string
	MaxContentSize   int
}

// NewWriteFileTool returns a WriteFileTool rooted at dir with a 1MB
// default content size cap.
func NewWriteFileTool(dir string) *WriteFileTool {
	return &WriteFileTool{WorkingDirectory: dir, MaxContentSize: 1 << 20}
}

func (t *WriteFileTool) ID() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Create a new file or overwrite an existing file with content, optionally backing up the original."
}

func (t *WriteFileTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string"},
			"content": map[string]any{"type": "string"},
			"backup":  map[string]any{"type": "boolean"},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) validatePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed, use relative paths")
	}
	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("directory traversal not allowed")
	}
	fullPath := filepath.Join(t.WorkingDirectory, cleaned)
	absPath, err := filepath.Abs(fullPath)
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
	return fullPath, nil
}

func (t *WriteFileTool) Call(ctx context.Context, args map[string]any) (toolkernel.Result, error) {
	const op = "localtools.WriteFileTool.Call"
	path, _ := args["path"].(string)
	content, hasContent := args["content"].(string)
	if path == "" {
		return toolkernel.Result{Error: "path parameter is required"}, nil
	}
	if !hasContent {
		return toolkernel.Result{Error: "content parameter is required"}, nil
	}
	if len(content) > t.MaxContentSize {
		return toolkernel.Result{Error: fmt.Sprintf("content too large: %d bytes (max %d)", len(content), t.MaxContentSize)}, nil
	}

	backup := true
	if b, ok := args["backup"].(bool); ok {
		backup = b
	}

	fullPath, err := t.validatePath(path)
	if err != nil {
		return toolkernel.Result{Error: err.Error()}, nil
	}

	fileExisted := false
	if backup {
		if _, err := os.Stat(fullPath); err == nil {
			fileExisted = true
			if err := copyFile(fullPath, fullPath+".bak"); err != nil {
				return toolkernel.Result{}, kernelerr.Wrap(op, kernelerr.Corrupted, err)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return toolkernel.Result{}, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		return toolkernel.Result{}, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}

	return toolkernel.Result{
		Content: fmt.Sprintf("wrote %d bytes to %s", len(content), path),
		Metadata: map[string]any{
			"path":          path,
			"bytes_written": len(content),
			"backed_up":     fileExisted && backup,
		},
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
