package agent

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies one conversation. It is passed explicitly into every
// RunTurn call; sessions share no ambient state, so turns for different
// sessions may proceed concurrently without extra locking.
type Session struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSession creates a session scoped to a task. An empty taskID yields
// purely conversational memory.
func NewSession(taskID string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		CreatedAt: time.Now(),
	}
}

// Response is the final result of a turn.
type Response struct {
	Text string
	// Steps is how many loop iterations the turn used.
	Steps int
	// Plan is the final plan state, nil if the turn never planned.
	Plan *Plan
}

// EventHandler provides optional callbacks for transparency display. All
// fields may be nil.
type EventHandler struct {
	// OnPlan is called when the model proposes or updates the plan.
	OnPlan func(plan *Plan)

	// OnToolStart is called when a tool begins execution.
	OnToolStart func(name string, args map[string]any)

	// OnToolEnd is called when a tool finishes execution.
	OnToolEnd func(name string, success bool, content string)

	// OnObservation is called for every observation appended to memory.
	OnObservation func(text string)
}

func (h *EventHandler) plan(p *Plan) {
	if h != nil && h.OnPlan != nil {
		h.OnPlan(p)
	}
}

func (h *EventHandler) toolStart(name string, args map[string]any) {
	if h != nil && h.OnToolStart != nil {
		h.OnToolStart(name, args)
	}
}

func (h *EventHandler) toolEnd(name string, success bool, content string) {
	if h != nil && h.OnToolEnd != nil {
		h.OnToolEnd(name, success, content)
	}
}

func (h *EventHandler) observation(text string) {
	if h != nil && h.OnObservation != nil {
		h.OnObservation(text)
	}
}
