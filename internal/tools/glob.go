package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/genai"
)

const maxGlobResults = 500

// GlobTool finds files matching a glob pattern.
type GlobTool struct {
	workDir string
}

// NewGlobTool creates a new GlobTool instance.
func NewGlobTool(workDir string) *GlobTool {
	return &GlobTool{workDir: workDir}
}

func (t *GlobTool) Name() string {
	return "glob_files"
}

func (t *GlobTool) Description() string {
	return `Finds files matching a glob pattern under the working directory.

PATTERN SYNTAX:
- *: Matches any characters except /
- **: Matches any characters including / (recursive)
- ?: Matches single character
- {a,b}: Matches either a or b

Example: "**/*.go" finds all Go files recursively.`
}

func (t *GlobTool) Permission() Level {
	return LevelAuto
}

func (t *GlobTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"pattern": {
					Type:        genai.TypeString,
					Description: "Glob pattern to match files against.",
				},
			},
			Required: []string{"pattern"},
		},
	}
}

func (t *GlobTool) Validate(args map[string]any) error {
	pattern, ok := GetString(args, "pattern")
	if !ok || pattern == "" {
		return NewValidationError("pattern", "is required")
	}
	if !doublestar.ValidatePattern(pattern) {
		return NewValidationError("pattern", "is not a valid glob pattern")
	}
	return nil
}

func (t *GlobTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	pattern, _ := GetString(args, "pattern")

	matches, err := doublestar.Glob(os.DirFS(t.workDir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		if errors.Is(err, path.ErrBadPattern) {
			return Result{}, NewValidationError("pattern", "is not a valid glob pattern")
		}
		return NewErrorResult(fmt.Sprintf("glob failed: %v", err)), nil
	}

	if len(matches) == 0 {
		return NewSuccessResult("No matches found."), nil
	}

	sort.Strings(matches)
	truncated := false
	if len(matches) > maxGlobResults {
		matches = matches[:maxGlobResults]
		truncated = true
	}

	out := strings.Join(matches, "\n")
	if truncated {
		out += fmt.Sprintf("\n... (first %d matches shown)", maxGlobResults)
	}
	return NewSuccessResult(out), nil
}
