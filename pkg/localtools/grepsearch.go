package localtools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kadirpekel/coderkernel/pkg/toolkernel"
)

// GrepSearchTool recursively regex-searches files under WorkingDirectory,
// capped to MaxResults matches and MaxFileSize per scanned file.
type GrepSearchTool struct {
	WorkingDirectory string
	MaxFileSize      int64
	MaxResults       int
}

// NewGrepSearchTool returns a GrepSearchTool rooted at dir.
func NewGrepSearchTool(dir string) *GrepSearchTool {
	return &GrepSearchTool{WorkingDirectory: dir, MaxFileSize: 10 << 20, MaxResults: 1000}
}

func (t *GrepSearchTool) ID() string { return "grep_search" }
func (t *GrepSearchTool) Description() string {
	return "Recursively regex-search files under the working directory for a pattern."
}

func (t *GrepSearchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern":          map[string]any{"type": "string"},
			"path":             map[string]any{"type": "string"},
			"case_insensitive": map[string]any{"type": "boolean"},
			"max_results":      map[string]any{"type": "number"},
		},
		"required": []string{"pattern"},
	}
}

// GrepMatch is one located occurrence of the search pattern.
type GrepMatch struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

func (t *GrepSearchTool) Call(ctx context.Context, args map[string]any) (toolkernel.Result, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return toolkernel.Result{Error: "pattern parameter is required"}, nil
	}
	if ci, ok := args["case_insensitive"].(bool); ok && ci {
		pattern = "(?i)" + pattern
	}
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return toolkernel.Result{Error: fmt.Sprintf("invalid regex pattern: %v", err)}, nil
	}

	searchPath := "."
	if p, ok := args["path"].(string); ok && p != "" {
		searchPath = p
	}
	maxResults := t.MaxResults
	if mr, ok := numberArg(args["max_results"]); ok && mr > 0 && mr < maxResults {
		maxResults = mr
	}

	root := filepath.Join(t.WorkingDirectory, filepath.Clean(searchPath))
	var matches []GrepMatch

	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info.IsDir() || len(matches) >= maxResults {
			return nil
		}
		if info.Size() > t.MaxFileSize {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(t.WorkingDirectory, path)
		for i, line := range strings.Split(string(content), "\n") {
			if len(matches) >= maxResults {
				break
			}
			if regex.MatchString(line) {
				matches = append(matches, GrepMatch{File: rel, Line: i + 1, Text: line})
			}
		}
		return nil
	})
	if err != nil {
		return toolkernel.Result{Error: err.Error()}, nil
	}

	return toolkernel.Result{
		Content:  matches,
		Metadata: map[string]any{"match_count": len(matches), "truncated": len(matches) >= maxResults},
	}, nil
}
