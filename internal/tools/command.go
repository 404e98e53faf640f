package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	// DefaultCommandTimeout bounds shell command execution.
	DefaultCommandTimeout = 60 * time.Second
	// MaxCommandOutput caps captured command output.
	MaxCommandOutput = 64 * 1024
)

// RunCommandTool executes a shell command in the working directory.
// Requires confirmation.
type RunCommandTool struct {
	workDir string
	timeout time.Duration
}

// NewRunCommandTool creates a new RunCommandTool instance.
func NewRunCommandTool(workDir string) *RunCommandTool {
	return &RunCommandTool{
		workDir: workDir,
		timeout: DefaultCommandTimeout,
	}
}

func (t *RunCommandTool) Name() string {
	return "run_command"
}

func (t *RunCommandTool) Description() string {
	return "Executes a shell command in the working directory and returns combined stdout/stderr."
}

func (t *RunCommandTool) Permission() Level {
	return LevelConfirm
}

func (t *RunCommandTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"command": {
					Type:        genai.TypeString,
					Description: "The shell command to execute.",
				},
			},
			Required: []string{"command"},
		},
	}
}

func (t *RunCommandTool) Validate(args map[string]any) error {
	command, ok := GetString(args, "command")
	if !ok || strings.TrimSpace(command) == "" {
		return NewValidationError("command", "is required")
	}
	return nil
}

// Preview shows the command on the approval request.
func (t *RunCommandTool) Preview(args map[string]any) string {
	command, _ := GetString(args, "command")
	if len(command) > 200 {
		command = command[:197] + "..."
	}
	return "$ " + command
}

func (t *RunCommandTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	command, _ := GetString(args, "command")

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = t.workDir

	output, err := cmd.CombinedOutput()
	text := string(output)
	if len(text) > MaxCommandOutput {
		text = text[:MaxCommandOutput] + "\n... (output truncated)"
	}

	if ctx.Err() == context.DeadlineExceeded {
		return NewErrorResult(fmt.Sprintf("command timed out after %s:\n%s", t.timeout, text)), nil
	}
	if err != nil {
		return NewErrorResult(fmt.Sprintf("command failed: %v\n%s", err, text)), nil
	}

	if strings.TrimSpace(text) == "" {
		text = "(no output)"
	}
	return NewSuccessResult(text), nil
}
