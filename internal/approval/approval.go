package approval

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Decision is the terminal outcome of an approval request.
type Decision string

const (
	// DecisionApproved allows the tool call to execute.
	DecisionApproved Decision = "approved"
	// DecisionDenied blocks the tool call.
	DecisionDenied Decision = "denied"
	// DecisionExpired resolves an unanswered or cancelled request.
	DecisionExpired Decision = "expired"
)

// State is the lifecycle state of a request.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateDenied   State = "denied"
	StateExpired  State = "expired"
)

// ToolCall identifies the call a request is gating.
type ToolCall struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
	// Step is the index of the plan step requesting the call.
	Step int `json:"step"`
}

// Request represents a permission request for a tool execution. It is
// created when a confirm-level call is about to execute and resolved
// exactly once.
type Request struct {
	ID        string    `json:"id"`
	Call      ToolCall  `json:"call"`
	Reason    string    `json:"reason"`
	Detail    string    `json:"detail,omitempty"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRequest creates a pending request for a tool call.
func NewRequest(call ToolCall, detail string) *Request {
	return &Request{
		ID:        uuid.NewString(),
		Call:      call,
		Reason:    buildReason(call),
		Detail:    detail,
		State:     StatePending,
		CreatedAt: time.Now(),
	}
}

// buildReason creates a human-readable reason for the request.
func buildReason(call ToolCall) string {
	switch call.Tool {
	case "write_file":
		if path, ok := call.Args["path"].(string); ok {
			return fmt.Sprintf("Write to file: %s", path)
		}
		return "Write to file"

	case "delete_file":
		if path, ok := call.Args["path"].(string); ok {
			return fmt.Sprintf("Delete file: %s", path)
		}
		return "Delete file"

	case "run_command":
		if cmd, ok := call.Args["command"].(string); ok {
			if len(cmd) > 150 {
				cmd = cmd[:147] + "..."
			}
			return fmt.Sprintf("Execute command: %s", cmd)
		}
		return "Execute shell command"

	default:
		return fmt.Sprintf("Execute tool: %s", call.Tool)
	}
}
