package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"google.golang.org/genai"
)

// Previewer is implemented by tools that can describe the effect of a call
// before it executes. The preview is attached to approval requests so the
// human sees what they are confirming.
type Previewer interface {
	Preview(args map[string]any) string
}

// WriteFileTool writes content to a file, creating parent directories as
// needed. Requires confirmation.
type WriteFileTool struct {
	workDir string
}

// NewWriteFileTool creates a new WriteFileTool instance.
func NewWriteFileTool(workDir string) *WriteFileTool {
	return &WriteFileTool{workDir: workDir}
}

func (t *WriteFileTool) Name() string {
	return "write_file"
}

func (t *WriteFileTool) Description() string {
	return "Writes content to a file, replacing it if it exists. Creates parent directories as needed."
}

func (t *WriteFileTool) Permission() Level {
	return LevelConfirm
}

func (t *WriteFileTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "Path of the file to write.",
				},
				"content": {
					Type:        genai.TypeString,
					Description: "Full content to write to the file.",
				},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *WriteFileTool) Validate(args map[string]any) error {
	path, ok := GetString(args, "path")
	if !ok || path == "" {
		return NewValidationError("path", "is required")
	}
	if _, ok := GetString(args, "content"); !ok {
		return NewValidationError("content", "is required")
	}
	return nil
}

// Preview returns a line diff between the current file content and the
// proposed content, for display alongside the approval request.
func (t *WriteFileTool) Preview(args map[string]any) string {
	path, _ := GetString(args, "path")
	content, _ := GetString(args, "content")
	if path == "" {
		return ""
	}

	old := ""
	if data, err := os.ReadFile(resolvePath(t.workDir, path)); err == nil {
		old = string(data)
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(old, content, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		text := d.Text
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			b.WriteString("+ " + strings.TrimRight(text, "\n") + "\n")
		case diffmatchpatch.DiffDelete:
			b.WriteString("- " + strings.TrimRight(text, "\n") + "\n")
		case diffmatchpatch.DiffEqual:
			// Elide unchanged regions, keeping the preview short.
			if len(text) > 80 {
				b.WriteString("  ...\n")
			} else {
				b.WriteString("  " + strings.TrimRight(text, "\n") + "\n")
			}
		}
	}
	return b.String()
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	path, _ := GetString(args, "path")
	content, _ := GetString(args, "content")
	absPath := resolvePath(t.workDir, path)

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return NewErrorResult(fmt.Sprintf("cannot create directory for %s: %v", path, err)), nil
	}
	if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
		return NewErrorResult(fmt.Sprintf("cannot write %s: %v", path, err)), nil
	}

	return NewSuccessResult(fmt.Sprintf("Wrote %d bytes to %s", len(content), path)), nil
}
