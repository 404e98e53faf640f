package approval

import (
	"context"
	"sort"
	"sync"
	"time"

	"deputy/internal/logging"
)

// Notifier surfaces a pending request to the UI collaborator. The UI is
// expected to call Gate.Resolve with the request ID once the human decides.
type Notifier func(req *Request)

// Gate suspends execution of permission-requiring tool calls until a human
// decision arrives, a timeout resolves them to expired, or an auto-approval
// rule short-circuits them. Safe for concurrent use by multiple turns.
type Gate struct {
	timeout  time.Duration
	notifier Notifier

	autoApprove map[string]bool
	pending     map[string]*pendingRequest

	mu sync.Mutex
}

type pendingRequest struct {
	req  *Request
	ch   chan Decision
	once sync.Once
}

// NewGate creates a new approval gate. autoApprove lists tool names that
// are always allowed without surfacing a request.
func NewGate(timeout time.Duration, autoApprove []string) *Gate {
	g := &Gate{
		timeout:     timeout,
		autoApprove: make(map[string]bool),
		pending:     make(map[string]*pendingRequest),
	}
	for _, name := range autoApprove {
		g.autoApprove[name] = true
	}
	return g
}

// SetNotifier sets the callback that surfaces requests to the UI.
func (g *Gate) SetNotifier(n Notifier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notifier = n
}

// SetAutoApprove replaces the auto-approval set. Used by config hot reload.
func (g *Gate) SetAutoApprove(names []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.autoApprove = make(map[string]bool, len(names))
	for _, name := range names {
		g.autoApprove[name] = true
	}
}

// IsAutoApproved reports whether a tool short-circuits the gate.
func (g *Gate) IsAutoApproved(tool string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.autoApprove[tool]
}

// RequestApproval submits a tool call for approval and blocks until a
// decision is reached. Auto-approved tools return DecisionApproved
// immediately without surfacing a request. Unanswered requests resolve to
// DecisionExpired after the gate's timeout. If ctx is cancelled while the
// request is pending, the request is marked expired and ctx's error is
// returned alongside DecisionExpired.
func (g *Gate) RequestApproval(ctx context.Context, call ToolCall, detail string) (Decision, error) {
	g.mu.Lock()
	if g.autoApprove[call.Tool] {
		g.mu.Unlock()
		logging.Debug("tool auto-approved", "tool", call.Tool)
		return DecisionApproved, nil
	}

	req := NewRequest(call, detail)
	p := &pendingRequest{
		req: req,
		ch:  make(chan Decision, 1),
	}
	g.pending[req.ID] = p
	notifier := g.notifier
	g.mu.Unlock()

	logging.Info("approval requested", "request_id", req.ID, "tool", call.Tool, "reason", req.Reason)

	if notifier != nil {
		notifier(req)
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case decision := <-p.ch:
		return decision, nil
	case <-timer.C:
		if !g.resolve(p, DecisionExpired) {
			// A human decision won the race; honor it.
			return <-p.ch, nil
		}
		return DecisionExpired, nil
	case <-ctx.Done():
		if !g.resolve(p, DecisionExpired) {
			return <-p.ch, ctx.Err()
		}
		return DecisionExpired, ctx.Err()
	}
}

// Resolve records the decision for a pending request. Resolution is
// idempotent: once a decision is recorded, later attempts are no-ops and
// return false.
func (g *Gate) Resolve(requestID string, decision Decision) bool {
	g.mu.Lock()
	p, ok := g.pending[requestID]
	g.mu.Unlock()
	if !ok {
		return false
	}
	return g.resolve(p, decision)
}

func (g *Gate) resolve(p *pendingRequest, decision Decision) bool {
	resolved := false
	p.once.Do(func() {
		switch decision {
		case DecisionApproved:
			p.req.State = StateApproved
		case DecisionDenied:
			p.req.State = StateDenied
		default:
			p.req.State = StateExpired
		}
		p.ch <- decision
		resolved = true

		g.mu.Lock()
		delete(g.pending, p.req.ID)
		g.mu.Unlock()

		logging.Info("approval resolved", "request_id", p.req.ID, "decision", string(decision))
	})
	return resolved
}

// Pending returns a snapshot of unresolved requests, oldest first.
func (g *Gate) Pending() []*Request {
	g.mu.Lock()
	defer g.mu.Unlock()

	reqs := make([]*Request, 0, len(g.pending))
	for _, p := range g.pending {
		reqs = append(reqs, p.req)
	}
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
	return reqs
}
