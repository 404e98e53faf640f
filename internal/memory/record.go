package memory

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies what a record holds.
type Kind string

const (
	// KindConversation is a user/agent exchange, unscoped to any task.
	KindConversation Kind = "conversation"
	// KindTask is a task artifact scoped to a task ID.
	KindTask Kind = "task"
	// KindObservation is a tool result or failure recorded mid-turn.
	KindObservation Kind = "observation"
)

// Record is a stored, embeddable unit of conversational or task history.
// Records are immutable once written.
type Record struct {
	ID        string            `json:"id"`
	TaskID    string            `json:"task_id,omitempty"`
	Kind      Kind              `json:"kind"`
	Role      string            `json:"role"` // user, agent, tool
	Content   string            `json:"content"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewRecord creates a record with a fresh ID and timestamp.
func NewRecord(taskID string, kind Kind, role, content string) *Record {
	return &Record{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Kind:      kind,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}
