package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/genai"

	"deputy/internal/logging"
)

// Registry manages the collection of available tools.
// It is read-mostly after startup and safe for concurrent use.
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. Registration fails if the name
// collides with an existing entry.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}

	r.tools[name] = tool
	return nil
}

// MustRegister adds a tool to the registry and logs a warning on error.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		logging.Warn("failed to register tool", "tool", tool.Name(), "error", err)
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}

// Names returns the names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Declarations returns all tool declarations for the model.
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	declarations := make([]*genai.FunctionDeclaration, 0, len(r.tools))
	for _, tool := range r.tools {
		declarations = append(declarations, tool.Declaration())
	}
	return declarations
}

// GeminiTools returns the registered tools in Gemini format.
func (r *Registry) GeminiTools() []*genai.Tool {
	return []*genai.Tool{
		{
			FunctionDeclarations: r.Declarations(),
		},
	}
}

// Permission returns the permission level for a tool name. Unknown tools
// default to LevelConfirm.
func (r *Registry) Permission(name string) Level {
	if tool, ok := r.Get(name); ok {
		return tool.Permission()
	}
	return LevelConfirm
}

// Dispatch validates arguments against the tool's schema and invokes the
// handler. Validation failures return a ValidationError without invoking
// the handler. The caller is responsible for dispatching each approved
// call at most once.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (Result, error) {
	tool, ok := r.Get(name)
	if !ok {
		return Result{}, fmt.Errorf("unknown tool: %s", name)
	}

	if err := tool.Validate(args); err != nil {
		return Result{}, err
	}

	start := time.Now()
	result, err := tool.Execute(ctx, args)
	logging.Debug("tool dispatched",
		"tool", name,
		"success", err == nil && result.Success,
		"duration", time.Since(start).String())

	return result, err
}
