package agent

import "fmt"

// StepStatus is the lifecycle state of a plan step.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "failed"
)

// Step is one planning/execution unit within a turn.
type Step struct {
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
	Result      string     `json:"result,omitempty"`
}

// Plan is the ordered list of steps the engine intends to execute for the
// current turn. It is owned exclusively by the running turn and discarded
// when the turn completes. Steps execute in order; a step never starts
// while an earlier one is pending approval.
type Plan struct {
	Steps []Step `json:"steps"`
}

// SetSteps replaces the plan with fresh pending steps. Completed step
// results from an earlier version of the plan are not carried over; the
// model sees them as observations instead.
func (p *Plan) SetSteps(descriptions []string) {
	p.Steps = make([]Step, len(descriptions))
	for i, d := range descriptions {
		p.Steps[i] = Step{Description: d, Status: StepPending}
	}
}

// Current returns the index of the first non-terminal step, or -1 when
// every step is done or failed (or the plan is empty).
func (p *Plan) Current() int {
	for i := range p.Steps {
		if p.Steps[i].Status == StepPending || p.Steps[i].Status == StepRunning {
			return i
		}
	}
	return -1
}

// Start marks the step at index running.
func (p *Plan) Start(i int) {
	if i >= 0 && i < len(p.Steps) {
		p.Steps[i].Status = StepRunning
	}
}

// Finish marks the step at index done or failed with a result summary.
func (p *Plan) Finish(i int, ok bool, result string) {
	if i < 0 || i >= len(p.Steps) {
		return
	}
	if ok {
		p.Steps[i].Status = StepDone
	} else {
		p.Steps[i].Status = StepFailed
	}
	p.Steps[i].Result = result
}

// Summary renders the plan state for inclusion in the decision prompt.
func (p *Plan) Summary() string {
	if len(p.Steps) == 0 {
		return ""
	}
	out := "Current plan:\n"
	for i, s := range p.Steps {
		out += fmt.Sprintf("%d. [%s] %s\n", i+1, s.Status, s.Description)
	}
	return out
}
