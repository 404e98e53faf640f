package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeTool is a scriptable tool for registry tests.
type fakeTool struct {
	name       string
	permission Level
	validate   func(args map[string]any) error
	execute    func(ctx context.Context, args map[string]any) (Result, error)
	executed   int
}

func (t *fakeTool) Name() string        { return t.name }
func (t *fakeTool) Description() string { return "fake tool" }
func (t *fakeTool) Permission() Level   { return t.permission }

func (t *fakeTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.name,
		Description: t.Description(),
		Parameters:  &genai.Schema{Type: genai.TypeObject},
	}
}

func (t *fakeTool) Validate(args map[string]any) error {
	if t.validate != nil {
		return t.validate(args)
	}
	return nil
}

func (t *fakeTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	t.executed++
	if t.execute != nil {
		return t.execute(ctx, args)
	}
	return NewSuccessResult("ok"), nil
}

func TestRegistryRegisterCollision(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "echo"}))

	err := r.Register(&fakeTool{name: "echo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	assert.Len(t, r.List(), 1)
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "echo"}))

	tool, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", tool.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryDispatchUnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.Dispatch(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestRegistryDispatchValidationBlocksHandler(t *testing.T) {
	r := NewRegistry()
	tool := &fakeTool{
		name: "echo",
		validate: func(args map[string]any) error {
			return NewValidationError("text", "is required")
		},
	}
	require.NoError(t, r.Register(tool))

	_, err := r.Dispatch(context.Background(), "echo", map[string]any{})
	require.Error(t, err)

	var vErr ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "text", vErr.Field)
	assert.Zero(t, tool.executed, "handler must not run on validation failure")
}

func TestRegistryDispatchSuccess(t *testing.T) {
	r := NewRegistry()
	tool := &fakeTool{
		name: "echo",
		execute: func(ctx context.Context, args map[string]any) (Result, error) {
			text, _ := GetString(args, "text")
			return NewSuccessResult(text), nil
		},
	}
	require.NoError(t, r.Register(tool))

	result, err := r.Dispatch(context.Background(), "echo", map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "hello", result.Content)
	assert.Equal(t, 1, tool.executed)
}

func TestRegistryPermission(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "safe", permission: LevelAuto}))
	require.NoError(t, r.Register(&fakeTool{name: "risky", permission: LevelConfirm}))

	assert.Equal(t, LevelAuto, r.Permission("safe"))
	assert.Equal(t, LevelConfirm, r.Permission("risky"))
	assert.Equal(t, LevelConfirm, r.Permission("unknown"), "unknown tools default to confirm")
}

func TestRegistryDeclarations(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "a"}))
	require.NoError(t, r.Register(&fakeTool{name: "b"}))

	decls := r.Declarations()
	assert.Len(t, decls, 2)

	gt := r.GeminiTools()
	require.Len(t, gt, 1)
	assert.Len(t, gt[0].FunctionDeclarations, 2)
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r, t.TempDir())

	builtins := []string{
		"read_file", "list_dir", "glob_files",
		"write_file", "delete_file", "run_command",
		"calculate", "get_current_time", "get_system_info", "generate_random",
	}
	for _, name := range builtins {
		_, ok := r.Get(name)
		assert.True(t, ok, "builtin %s not registered", name)
	}

	assert.Equal(t, LevelAuto, r.Permission("read_file"))
	assert.Equal(t, LevelAuto, r.Permission("calculate"))
	assert.Equal(t, LevelConfirm, r.Permission("write_file"))
	assert.Equal(t, LevelConfirm, r.Permission("delete_file"))
	assert.Equal(t, LevelConfirm, r.Permission("run_command"))
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"name":  "deputy",
		"count": float64(3),
	}

	name, ok := GetString(args, "name")
	assert.True(t, ok)
	assert.Equal(t, "deputy", name)

	_, ok = GetString(args, "count")
	assert.False(t, ok)

	count, ok := GetInt(args, "count")
	assert.True(t, ok)
	assert.Equal(t, 3, count)

	assert.Equal(t, "fallback", GetStringDefault(args, "missing", "fallback"))
	assert.Equal(t, 7, GetIntDefault(args, "missing", 7))
}
