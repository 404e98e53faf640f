package tools

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"google.golang.org/genai"
)

// ListDirTool lists the entries of a directory.
type ListDirTool struct {
	workDir string
}

// NewListDirTool creates a new ListDirTool instance.
func NewListDirTool(workDir string) *ListDirTool {
	return &ListDirTool{workDir: workDir}
}

func (t *ListDirTool) Name() string {
	return "list_dir"
}

func (t *ListDirTool) Description() string {
	return "Lists files and directories at the given path. Defaults to the working directory."
}

func (t *ListDirTool) Permission() Level {
	return LevelAuto
}

func (t *ListDirTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "Directory to list. Defaults to the working directory when omitted.",
				},
			},
			Required: []string{},
		},
	}
}

func (t *ListDirTool) Validate(args map[string]any) error {
	// path is optional, defaults to the working directory
	return nil
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	path := GetStringDefault(args, "path", ".")
	absPath := resolvePath(t.workDir, path)

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("cannot list %s: %v", path, err)), nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return NewSuccessResult("(empty directory)"), nil
	}
	return NewSuccessResult(strings.Join(names, "\n")), nil
}
