package localtools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kadirpekel/coderkernel/pkg/toolkernel"
)

// RunCommandTool executes a shell command in WorkingDirectory, subject to
// an optional allow-list of base commands and a timeout.
type RunCommandTool struct {
	WorkingDirectory string
	AllowedCommands  []string // empty means unrestricted
	Timeout          time.Duration
}

// NewRunCommandTool returns a RunCommandTool rooted at dir with a 30s
// default timeout and no command restrictions.
func NewRunCommandTool(dir string) *RunCommandTool {
	return &RunCommandTool{WorkingDirectory: dir, Timeout: 30 * time.Second}
}

func (t *RunCommandTool) ID() string          { return "run_command" }
func (t *RunCommandTool) Description() string { return "Execute a shell command in the working directory." }

func (t *RunCommandTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"command": map[string]any{"type": "string"}},
		"required":   []string{"command"},
	}
}

func (t *RunCommandTool) baseCommand(command string) string {
	parts := strings.FieldsFunc(command, func(r rune) bool {
		return r == '|' || r == '>' || r == '<' || r == ';'
	})
	if len(parts) == 0 {
		return command
	}
	fields := strings.Fields(parts[0])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (t *RunCommandTool) allowed(command string) bool {
	if len(t.AllowedCommands) == 0 {
		return true
	}
	base := t.baseCommand(command)
	for _, allowed := range t.AllowedCommands {
		if allowed == base {
			return true
		}
	}
	return false
}

func (t *RunCommandTool) Call(ctx context.Context, args map[string]any) (toolkernel.Result, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return toolkernel.Result{Error: "command parameter is required"}, nil
	}
	if !t.allowed(command) {
		return toolkernel.Result{Error: fmt.Sprintf("command not allowed: %s (allowed: %v)", t.baseCommand(command), t.AllowedCommands)}, nil
	}

	execCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = t.WorkingDirectory

	output, err := cmd.CombinedOutput()
	if err != nil {
		return toolkernel.Result{
			Content:  string(output),
			Error:    err.Error(),
			Metadata: map[string]any{"command": command},
		}, nil
	}
	return toolkernel.Result{
		Content:  string(output),
		Metadata: map[string]any{"command": command},
	}, nil
}
