package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/genai"
)

const (
	// MaxReadBytes caps how much file content a single read returns.
	MaxReadBytes = 256 * 1024
)

// ReadFileTool reads the contents of a file.
type ReadFileTool struct {
	workDir string
}

// NewReadFileTool creates a new ReadFileTool instance.
func NewReadFileTool(workDir string) *ReadFileTool {
	return &ReadFileTool{workDir: workDir}
}

func (t *ReadFileTool) Name() string {
	return "read_file"
}

func (t *ReadFileTool) Description() string {
	return "Reads the contents of a file. Returns the file text, truncated if very large."
}

func (t *ReadFileTool) Permission() Level {
	return LevelAuto
}

func (t *ReadFileTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "Path to the file to read (relative to the working directory or absolute).",
				},
			},
			Required: []string{"path"},
		},
	}
}

func (t *ReadFileTool) Validate(args map[string]any) error {
	path, ok := GetString(args, "path")
	if !ok || path == "" {
		return NewValidationError("path", "is required")
	}
	return nil
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	path, _ := GetString(args, "path")
	absPath := resolvePath(t.workDir, path)

	info, err := os.Stat(absPath)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("cannot read %s: %v", path, err)), nil
	}
	if info.IsDir() {
		return NewErrorResult(fmt.Sprintf("%s is a directory", path)), nil
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("cannot read %s: %v", path, err)), nil
	}

	content := string(data)
	truncated := false
	if len(content) > MaxReadBytes {
		content = content[:MaxReadBytes]
		truncated = true
	}

	if truncated {
		content += fmt.Sprintf("\n... (truncated, %d bytes total)", info.Size())
	}
	return NewSuccessResult(content), nil
}

// resolvePath makes a path absolute relative to the working directory.
func resolvePath(workDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(workDir, path)
}
