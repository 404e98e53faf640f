package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deputy/internal/approval"
	"deputy/internal/client"
	"deputy/internal/logging"
	"deputy/internal/memory"
	"deputy/internal/tools"
)

// Options bound the orchestration loop.
type Options struct {
	// MaxPlanSteps bounds loop iterations per turn.
	MaxPlanSteps int
	// MemoryTopK is how many memory records are retrieved per step.
	MemoryTopK int
	// DecisionTimeout bounds a single model call.
	DecisionTimeout time.Duration
}

// Engine is the planning/execution state machine. It consumes model
// decisions, gates side-effecting tool calls through the approval gate,
// and appends every observation to the memory store in completion order.
type Engine struct {
	client      client.Client
	registry    *tools.Registry
	gate        *approval.Gate
	store       *memory.Store
	checkpoints *CheckpointStore
	events      *EventHandler
	opts        Options
}

// NewEngine creates an engine. checkpoints and events may be nil.
func NewEngine(c client.Client, registry *tools.Registry, gate *approval.Gate, store *memory.Store, checkpoints *CheckpointStore, opts Options) *Engine {
	if opts.MaxPlanSteps <= 0 {
		opts.MaxPlanSteps = 12
	}
	if opts.MemoryTopK <= 0 {
		opts.MemoryTopK = 6
	}
	if opts.DecisionTimeout <= 0 {
		opts.DecisionTimeout = 120 * time.Second
	}
	return &Engine{
		client:      c,
		registry:    registry,
		gate:        gate,
		store:       store,
		checkpoints: checkpoints,
		opts:        opts,
	}
}

// SetEvents sets the transparency callbacks.
func (e *Engine) SetEvents(h *EventHandler) {
	e.events = h
}

// RunTurn executes one user-input-to-agent-response cycle. Tool and model
// failures are folded back into the loop as observations; only memory
// store unavailability, cancellation, and running out of steps terminate
// the turn with an error.
func (e *Engine) RunTurn(ctx context.Context, session *Session, input string) (*Response, error) {
	log := logging.With("session_id", session.ID, "task_id", session.TaskID)
	log.Info("turn started")

	userRec := memory.NewRecord(session.TaskID, memory.KindConversation, "user", input)
	if err := e.store.Write(ctx, userRec); err != nil {
		return nil, err
	}

	plan := &Plan{}
	var observations []string
	return e.runLoop(ctx, session, input, plan, observations, 0)
}

// runLoop drives decisions until a final answer, an error, or the step
// budget runs out. startStep is non-zero when resuming from a checkpoint.
func (e *Engine) runLoop(ctx context.Context, session *Session, input string, plan *Plan, observations []string, startStep int) (*Response, error) {
	log := logging.With("session_id", session.ID, "task_id", session.TaskID)

	decisionFailures := 0

	for step := startStep; step < e.opts.MaxPlanSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTurnCancelled, err)
		}

		records, err := e.store.Query(ctx, input, session.TaskID, e.opts.MemoryTopK)
		if err != nil {
			return nil, err
		}

		corrective := decisionFailures > 0
		req := client.Request{
			SystemPrompt: systemPrompt,
			Prompt:       buildPrompt(input, records, plan, observations, corrective),
			Tools:        e.registry.Declarations(),
		}

		dctx, cancel := context.WithTimeout(ctx, e.opts.DecisionTimeout)
		decision, err := e.client.Decide(dctx, req)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrTurnCancelled, ctx.Err())
			}
			decisionFailures++
			log.Warn("model decision failed", "attempt", decisionFailures, "error", err)
			if decisionFailures > 1 {
				return nil, &ModelDecisionError{Attempts: decisionFailures, Err: err}
			}
			// One retry with a corrective prompt; the retry consumes a step.
			continue
		}

		switch decision.Kind {
		case client.KindRespond:
			agentRec := memory.NewRecord(session.TaskID, memory.KindConversation, "agent", decision.Text)
			if err := e.store.Write(ctx, agentRec); err != nil {
				return nil, err
			}
			log.Info("turn completed", "steps", step+1)
			resp := &Response{Text: decision.Text, Steps: step + 1}
			if len(plan.Steps) > 0 {
				resp.Plan = plan
			}
			return resp, nil

		case client.KindPlan:
			decisionFailures = 0
			plan.SetSteps(decision.Steps)
			e.events.plan(plan)
			obs := fmt.Sprintf("Plan proposed with %d steps.", len(decision.Steps))
			if err := e.observe(ctx, session, &observations, obs); err != nil {
				return nil, err
			}

		case client.KindCallTool:
			decisionFailures = 0
			obs, err := e.executeToolStep(ctx, session, input, plan, observations, step, decision)
			if err != nil {
				return nil, err
			}
			if err := e.observe(ctx, session, &observations, obs); err != nil {
				return nil, err
			}

		default:
			decisionFailures++
			log.Warn("unrecognized decision kind", "kind", string(decision.Kind), "attempt", decisionFailures)
			if decisionFailures > 1 {
				return nil, &ModelDecisionError{Attempts: decisionFailures, Err: client.ErrMalformedDecision}
			}
		}
	}

	log.Warn("turn exceeded step budget", "max_steps", e.opts.MaxPlanSteps)
	return nil, ErrMaxStepsExceeded
}

// executeToolStep runs one tool-call decision through validation, the
// approval gate, and dispatch. It returns the observation text; the only
// errors returned are fatal for the turn (memory loss or cancellation).
func (e *Engine) executeToolStep(ctx context.Context, session *Session, input string, plan *Plan, observations []string, step int, decision *client.Decision) (string, error) {
	planStep := plan.Current()
	plan.Start(planStep)

	tool, ok := e.registry.Get(decision.Tool)
	if !ok {
		plan.Finish(planStep, false, "unknown tool")
		return fmt.Sprintf("Tool call failed: unknown tool %q.", decision.Tool), nil
	}

	if err := tool.Validate(decision.Args); err != nil {
		plan.Finish(planStep, false, "invalid arguments")
		return fmt.Sprintf("Tool %s rejected arguments: %v.", decision.Tool, err), nil
	}

	call := approval.ToolCall{
		Tool: decision.Tool,
		Args: decision.Args,
		Step: step,
	}

	if tool.Permission() == tools.LevelConfirm {
		detail := ""
		if previewer, ok := tool.(tools.Previewer); ok {
			detail = previewer.Preview(decision.Args)
		}

		// Persist the pending step so a restarted process can resume it.
		cpID := e.saveCheckpoint(session, input, plan, observations, step, call)

		verdict, err := e.gate.RequestApproval(ctx, call, detail)
		e.deleteCheckpoint(cpID)

		if err != nil {
			// Cancellation at the suspension point: the request is already
			// expired; memory written so far is retained.
			return "", fmt.Errorf("%w: %v", ErrTurnCancelled, err)
		}

		switch verdict {
		case approval.DecisionApproved:
			// fall through to dispatch
		case approval.DecisionDenied:
			plan.Finish(planStep, false, "denied")
			return fmt.Sprintf("Tool %s was denied by the user; the action did not run.", decision.Tool), nil
		default:
			plan.Finish(planStep, false, "approval expired")
			return fmt.Sprintf("Approval for tool %s expired before a decision; the action did not run.", decision.Tool), nil
		}
	}

	e.events.toolStart(decision.Tool, decision.Args)
	result, err := e.registry.Dispatch(ctx, decision.Tool, decision.Args)
	if err != nil {
		execErr := &ToolExecutionError{Tool: decision.Tool, Err: err}
		logging.Warn("tool execution failed", "tool", decision.Tool, "error", err)
		plan.Finish(planStep, false, "execution error")
		e.events.toolEnd(decision.Tool, false, execErr.Error())
		return fmt.Sprintf("Tool %s failed: %v.", decision.Tool, err), nil
	}

	e.events.toolEnd(decision.Tool, result.Success, result.Content)

	if !result.Success {
		plan.Finish(planStep, false, result.Error)
		return fmt.Sprintf("Tool %s reported an error: %s", decision.Tool, result.Error), nil
	}

	plan.Finish(planStep, true, result.Content)
	return fmt.Sprintf("Tool %s succeeded: %s", decision.Tool, result.Content), nil
}

// observe records an observation in memory before the next loop iteration
// so subsequent planning sees up-to-date state. Observations are appended
// in completion order.
func (e *Engine) observe(ctx context.Context, session *Session, observations *[]string, text string) error {
	*observations = append(*observations, text)
	e.events.observation(text)

	rec := memory.NewRecord(session.TaskID, memory.KindObservation, "tool", text)
	if err := e.store.Write(ctx, rec); err != nil {
		return err
	}
	return nil
}

// saveCheckpoint persists pending-step state before an approval suspension.
// Returns the checkpoint ID, or "" when checkpointing is disabled.
func (e *Engine) saveCheckpoint(session *Session, input string, plan *Plan, observations []string, step int, call approval.ToolCall) string {
	if e.checkpoints == nil {
		return ""
	}
	cp := &Checkpoint{
		Session:      *session,
		Input:        input,
		Plan:         *plan,
		Observations: append([]string{}, observations...),
		Step:         step,
		PendingCall:  call,
		CreatedAt:    time.Now(),
	}
	id, err := e.checkpoints.Save(cp)
	if err != nil {
		logging.Warn("failed to save checkpoint", "error", err)
		return ""
	}
	return id
}

func (e *Engine) deleteCheckpoint(id string) {
	if e.checkpoints == nil || id == "" {
		return
	}
	if err := e.checkpoints.Delete(id); err != nil {
		logging.Warn("failed to delete checkpoint", "checkpoint_id", id, "error", err)
	}
}

// IsFatal reports whether a RunTurn error ended the turn (as opposed to a
// recovered step-level failure, which never surfaces as an error).
func IsFatal(err error) bool {
	return err != nil && (errors.Is(err, memory.ErrUnavailable) ||
		errors.Is(err, ErrMaxStepsExceeded) ||
		errors.Is(err, ErrTurnCancelled))
}
