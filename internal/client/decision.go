package client

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

// ErrMalformedDecision indicates the model returned output that could not
// be mapped onto exactly one decision. The engine retries once with a
// corrective prompt before giving up on the turn.
var ErrMalformedDecision = errors.New("malformed model decision")

// DecisionKind is the kind of action the model chose.
type DecisionKind string

const (
	// KindRespond ends the turn with a final answer.
	KindRespond DecisionKind = "respond"
	// KindCallTool requests a tool invocation.
	KindCallTool DecisionKind = "call_tool"
	// KindPlan proposes or updates the plan for the turn.
	KindPlan DecisionKind = "plan"
)

// Decision is the structured outcome of one model call: exactly one of a
// final response, a tool call, or a plan.
type Decision struct {
	Kind DecisionKind

	// Text holds the final answer for KindRespond.
	Text string

	// Tool and Args hold the call for KindCallTool.
	Tool string
	Args map[string]any

	// Steps holds the step descriptions for KindPlan.
	Steps []string
}

// Request carries everything the adapter needs for one decision.
type Request struct {
	// SystemPrompt is the engine's standing instruction.
	SystemPrompt string

	// Prompt is the built decision prompt: user input, retrieved memory,
	// plan state, and prior observations.
	Prompt string

	// Tools are the callable tool declarations.
	Tools []*genai.FunctionDeclaration
}

// Client is the model adapter boundary. Implementations must return within
// the context's deadline; a deadline hit is a retryable failure for the
// caller.
type Client interface {
	Decide(ctx context.Context, req Request) (*Decision, error)
	Close() error
}

// planFunctionName is the reserved function the model uses to propose a
// plan instead of calling a real tool.
const planFunctionName = "propose_plan"

// planDeclaration returns the declaration for the plan-proposal function
// that every backend appends to the tool list.
func planDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        planFunctionName,
		Description: "Submit or update an ordered plan of steps for the current request. Use before starting multi-step work.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"steps": {
					Type:        genai.TypeArray,
					Description: "Ordered step descriptions.",
					Items: &genai.Schema{
						Type: genai.TypeString,
					},
				},
			},
			Required: []string{"steps"},
		},
	}
}

// decisionFromFunctionCall maps a function call onto a Decision.
func decisionFromFunctionCall(name string, args map[string]any) (*Decision, error) {
	if name == planFunctionName {
		raw, ok := args["steps"]
		if !ok {
			return nil, ErrMalformedDecision
		}
		items, ok := raw.([]any)
		if !ok || len(items) == 0 {
			return nil, ErrMalformedDecision
		}
		steps := make([]string, 0, len(items))
		for _, item := range items {
			step, ok := item.(string)
			if !ok || step == "" {
				return nil, ErrMalformedDecision
			}
			steps = append(steps, step)
		}
		return &Decision{Kind: KindPlan, Steps: steps}, nil
	}

	if name == "" {
		return nil, ErrMalformedDecision
	}
	if args == nil {
		args = map[string]any{}
	}
	return &Decision{Kind: KindCallTool, Tool: name, Args: args}, nil
}
