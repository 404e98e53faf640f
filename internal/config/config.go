package config

import "time"

// Config represents the main application configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Model    ModelConfig    `yaml:"model"`
	Engine   EngineConfig   `yaml:"engine"`
	Approval ApprovalConfig `yaml:"approval"`
	Memory   MemoryConfig   `yaml:"memory"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig holds provider credentials and endpoints.
type APIConfig struct {
	// API key for the Gemini backend.
	GeminiKey string `yaml:"gemini_key,omitempty"`

	// Ollama server URL (default: http://localhost:11434).
	OllamaBaseURL string `yaml:"ollama_base_url,omitempty"`

	// Optional key for remote Ollama servers with auth.
	OllamaKey string `yaml:"ollama_key,omitempty"`

	// Active provider: gemini or ollama (default: gemini).
	Provider string `yaml:"provider"`
}

// ModelConfig holds model selection settings.
type ModelConfig struct {
	Name           string  `yaml:"name"`
	EmbeddingModel string  `yaml:"embedding_model"`
	Temperature    float32 `yaml:"temperature"`
	// Timeout for a single model decision call.
	DecisionTimeoutSeconds int `yaml:"decision_timeout_seconds"`
}

// EngineConfig holds orchestration loop settings.
type EngineConfig struct {
	// MaxPlanSteps bounds the planning/execution loop per turn.
	MaxPlanSteps int `yaml:"max_plan_steps"`

	// MemoryTopK is the number of memory records retrieved per step.
	MemoryTopK int `yaml:"memory_top_k"`

	// TaskMemoryWeight blends task-scoped vs conversational memory
	// relevance (0..1). Higher values favor task memory.
	TaskMemoryWeight float64 `yaml:"task_memory_weight"`
}

// ApprovalConfig holds human-in-the-loop settings.
type ApprovalConfig struct {
	// AutoApproveTools lists tool names that never require confirmation.
	AutoApproveTools []string `yaml:"auto_approve_tools"`

	// TimeoutSeconds resolves unanswered requests to expired.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// MemoryConfig holds memory store settings.
type MemoryConfig struct {
	// Dir overrides the storage directory (default: <configdir>/memory).
	Dir string `yaml:"dir,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	ToFile bool   `yaml:"to_file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Provider:      "gemini",
			OllamaBaseURL: "http://localhost:11434",
		},
		Model: ModelConfig{
			Name:                   "gemini-2.5-flash",
			EmbeddingModel:         "text-embedding-004",
			Temperature:            0.2,
			DecisionTimeoutSeconds: 120,
		},
		Engine: EngineConfig{
			MaxPlanSteps:     12,
			MemoryTopK:       6,
			TaskMemoryWeight: 0.7,
		},
		Approval: ApprovalConfig{
			AutoApproveTools: []string{},
			TimeoutSeconds:   300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			ToFile: true,
		},
	}
}

// DecisionTimeout returns the model decision timeout as a duration.
func (c *Config) DecisionTimeout() time.Duration {
	if c.Model.DecisionTimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Model.DecisionTimeoutSeconds) * time.Second
}

// ApprovalTimeout returns the approval timeout as a duration.
func (c *Config) ApprovalTimeout() time.Duration {
	if c.Approval.TimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.Approval.TimeoutSeconds) * time.Second
}
