package agent

import (
	"errors"
	"fmt"
)

// ErrMaxStepsExceeded terminates a turn that ran out of plan steps without
// a final answer. It is a degraded result for the caller, not a crash.
var ErrMaxStepsExceeded = errors.New("turn exceeded maximum plan steps without a final answer")

// ErrTurnCancelled terminates a turn cancelled by the caller at a
// suspension point. Memory already written is retained.
var ErrTurnCancelled = errors.New("turn cancelled")

// ModelDecisionError indicates the model produced unusable output twice in
// a row (the first failure is retried with a corrective prompt).
type ModelDecisionError struct {
	Attempts int
	Err      error
}

func (e *ModelDecisionError) Error() string {
	return fmt.Sprintf("model decision failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ModelDecisionError) Unwrap() error {
	return e.Err
}

// ToolExecutionError wraps a handler failure. It is recorded as a failed
// observation; the turn continues.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}
