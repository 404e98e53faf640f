package tools

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// DeleteFileTool removes a single file. Requires confirmation.
type DeleteFileTool struct {
	workDir string
}

// NewDeleteFileTool creates a new DeleteFileTool instance.
func NewDeleteFileTool(workDir string) *DeleteFileTool {
	return &DeleteFileTool{workDir: workDir}
}

func (t *DeleteFileTool) Name() string {
	return "delete_file"
}

func (t *DeleteFileTool) Description() string {
	return "Deletes a single file. Does not delete directories."
}

func (t *DeleteFileTool) Permission() Level {
	return LevelConfirm
}

func (t *DeleteFileTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "Path of the file to delete.",
				},
			},
			Required: []string{"path"},
		},
	}
}

func (t *DeleteFileTool) Validate(args map[string]any) error {
	path, ok := GetString(args, "path")
	if !ok || path == "" {
		return NewValidationError("path", "is required")
	}
	return nil
}

func (t *DeleteFileTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	path, _ := GetString(args, "path")
	absPath := resolvePath(t.workDir, path)

	info, err := os.Stat(absPath)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("cannot delete %s: %v", path, err)), nil
	}
	if info.IsDir() {
		return NewErrorResult(fmt.Sprintf("%s is a directory; refusing to delete", path)), nil
	}

	if err := os.Remove(absPath); err != nil {
		return NewErrorResult(fmt.Sprintf("cannot delete %s: %v", path, err)), nil
	}
	return NewSuccessResult(fmt.Sprintf("Deleted %s", path)), nil
}
