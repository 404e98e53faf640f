package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"deputy/internal/approval"
	"deputy/internal/client"
	"deputy/internal/memory"
	"deputy/internal/tools"
)

// scriptedClient returns pre-programmed decisions in order. Entries may be
// errors to simulate model failures.
type scriptedClient struct {
	script []any // *client.Decision or error
	calls  int
	// prompts records the prompt of every request, for corrective checks.
	prompts []string
}

func (c *scriptedClient) Decide(ctx context.Context, req client.Request) (*client.Decision, error) {
	c.prompts = append(c.prompts, req.Prompt)
	if c.calls >= len(c.script) {
		return nil, errors.New("script exhausted")
	}
	entry := c.script[c.calls]
	c.calls++

	if err, ok := entry.(error); ok {
		return nil, err
	}
	return entry.(*client.Decision), nil
}

func (c *scriptedClient) Close() error { return nil }

// countingTool records invocations; registry tests in the tools package
// cover dispatch details, here it only proves handler invocation semantics.
type countingTool struct {
	name       string
	permission tools.Level
	invoked    int
	result     tools.Result
	err        error
}

func (t *countingTool) Name() string            { return t.name }
func (t *countingTool) Description() string     { return "test tool" }
func (t *countingTool) Permission() tools.Level { return t.permission }

func (t *countingTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{Name: t.name, Parameters: &genai.Schema{Type: genai.TypeObject}}
}

func (t *countingTool) Validate(args map[string]any) error {
	if _, ok := args["fail_validation"]; ok {
		return tools.NewValidationError("fail_validation", "rejected")
	}
	return nil
}

func (t *countingTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	t.invoked++
	if t.err != nil {
		return tools.Result{}, t.err
	}
	return t.result, nil
}

func respond(text string) *client.Decision {
	return &client.Decision{Kind: client.KindRespond, Text: text}
}

func callTool(name string, args map[string]any) *client.Decision {
	if args == nil {
		args = map[string]any{}
	}
	return &client.Decision{Kind: client.KindCallTool, Tool: name, Args: args}
}

func newTestEngine(t *testing.T, c client.Client, reg *tools.Registry, gate *approval.Gate, opts Options) (*Engine, *memory.Store) {
	t.Helper()
	store, err := memory.NewStore(t.TempDir(), nil, 0.7)
	require.NoError(t, err)
	if gate == nil {
		gate = approval.NewGate(time.Second, nil)
	}
	if reg == nil {
		reg = tools.NewRegistry()
	}
	return NewEngine(c, reg, gate, store, nil, opts), store
}

func TestRunTurnRespond(t *testing.T) {
	c := &scriptedClient{script: []any{respond("done")}}
	engine, store := newTestEngine(t, c, nil, nil, Options{})

	resp, err := engine.RunTurn(context.Background(), NewSession(""), "hello")
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text)
	assert.Equal(t, 1, resp.Steps)
	assert.Nil(t, resp.Plan)

	// User input and final answer are both in memory.
	assert.Equal(t, 2, store.Count())
}

func TestRunTurnToolThenRespond(t *testing.T) {
	reg := tools.NewRegistry()
	tool := &countingTool{name: "probe", permission: tools.LevelAuto, result: tools.NewSuccessResult("probed")}
	require.NoError(t, reg.Register(tool))

	c := &scriptedClient{script: []any{
		callTool("probe", nil),
		respond("all good"),
	}}
	engine, store := newTestEngine(t, c, reg, nil, Options{})

	resp, err := engine.RunTurn(context.Background(), NewSession(""), "check it")
	require.NoError(t, err)
	assert.Equal(t, "all good", resp.Text)
	assert.Equal(t, 1, tool.invoked)

	// The second prompt carries the observation from the first step.
	require.Len(t, c.prompts, 2)
	assert.Contains(t, c.prompts[1], "probed")

	// user input + observation + final answer
	assert.Equal(t, 3, store.Count())
}

func TestRunTurnPlanDecision(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&countingTool{name: "probe", permission: tools.LevelAuto, result: tools.NewSuccessResult("ok")}))

	c := &scriptedClient{script: []any{
		&client.Decision{Kind: client.KindPlan, Steps: []string{"probe the thing", "report back"}},
		callTool("probe", nil),
		respond("finished"),
	}}
	engine, _ := newTestEngine(t, c, reg, nil, Options{})

	var planned *Plan
	engine.SetEvents(&EventHandler{OnPlan: func(p *Plan) { planned = p }})

	resp, err := engine.RunTurn(context.Background(), NewSession(""), "do the thing")
	require.NoError(t, err)
	assert.Equal(t, "finished", resp.Text)
	require.NotNil(t, resp.Plan)
	require.NotNil(t, planned)
	require.Len(t, resp.Plan.Steps, 2)
	assert.Equal(t, StepDone, resp.Plan.Steps[0].Status)
}

func TestRunTurnDeniedToolNeverRuns(t *testing.T) {
	reg := tools.NewRegistry()
	tool := &countingTool{name: "destroy", permission: tools.LevelConfirm, result: tools.NewSuccessResult("gone")}
	require.NoError(t, reg.Register(tool))

	gate := approval.NewGate(time.Second, nil)
	gate.SetNotifier(func(req *approval.Request) {
		go gate.Resolve(req.ID, approval.DecisionDenied)
	})

	c := &scriptedClient{script: []any{
		callTool("destroy", map[string]any{"path": "x"}),
		respond("I could not do that"),
	}}
	engine, _ := newTestEngine(t, c, reg, gate, Options{})

	resp, err := engine.RunTurn(context.Background(), NewSession(""), "destroy x")
	require.NoError(t, err)
	assert.Equal(t, "I could not do that", resp.Text)
	assert.Zero(t, tool.invoked, "denied tool must not execute")

	// The denial reaches the model as a failed observation.
	require.Len(t, c.prompts, 2)
	assert.Contains(t, c.prompts[1], "denied")
}

func TestRunTurnApprovedToolRunsOnce(t *testing.T) {
	reg := tools.NewRegistry()
	tool := &countingTool{name: "destroy", permission: tools.LevelConfirm, result: tools.NewSuccessResult("gone")}
	require.NoError(t, reg.Register(tool))

	gate := approval.NewGate(time.Second, nil)
	gate.SetNotifier(func(req *approval.Request) {
		go gate.Resolve(req.ID, approval.DecisionApproved)
	})

	c := &scriptedClient{script: []any{
		callTool("destroy", nil),
		respond("done"),
	}}
	engine, _ := newTestEngine(t, c, reg, gate, Options{})

	_, err := engine.RunTurn(context.Background(), NewSession(""), "destroy x")
	require.NoError(t, err)
	assert.Equal(t, 1, tool.invoked)
}

func TestRunTurnExpiredApproval(t *testing.T) {
	reg := tools.NewRegistry()
	tool := &countingTool{name: "destroy", permission: tools.LevelConfirm}
	require.NoError(t, reg.Register(tool))

	gate := approval.NewGate(10*time.Millisecond, nil)

	c := &scriptedClient{script: []any{
		callTool("destroy", nil),
		respond("the approval timed out"),
	}}
	engine, _ := newTestEngine(t, c, reg, gate, Options{})

	resp, err := engine.RunTurn(context.Background(), NewSession(""), "destroy x")
	require.NoError(t, err)
	assert.Equal(t, "the approval timed out", resp.Text)
	assert.Zero(t, tool.invoked)
	assert.Contains(t, c.prompts[1], "expired")
}

func TestRunTurnAutoApproveSkipsGate(t *testing.T) {
	reg := tools.NewRegistry()
	tool := &countingTool{name: "destroy", permission: tools.LevelConfirm, result: tools.NewSuccessResult("gone")}
	require.NoError(t, reg.Register(tool))

	gate := approval.NewGate(time.Second, []string{"destroy"})
	notified := false
	gate.SetNotifier(func(req *approval.Request) { notified = true })

	c := &scriptedClient{script: []any{
		callTool("destroy", nil),
		respond("done"),
	}}
	engine, _ := newTestEngine(t, c, reg, gate, Options{})

	_, err := engine.RunTurn(context.Background(), NewSession(""), "destroy x")
	require.NoError(t, err)
	assert.Equal(t, 1, tool.invoked)
	assert.False(t, notified)
}

func TestRunTurnUnknownToolContinues(t *testing.T) {
	c := &scriptedClient{script: []any{
		callTool("nonexistent", nil),
		respond("that tool does not exist"),
	}}
	engine, _ := newTestEngine(t, c, nil, nil, Options{})

	resp, err := engine.RunTurn(context.Background(), NewSession(""), "use the tool")
	require.NoError(t, err)
	assert.Equal(t, "that tool does not exist", resp.Text)
	assert.Contains(t, c.prompts[1], "unknown tool")
}

func TestRunTurnValidationFailureContinues(t *testing.T) {
	reg := tools.NewRegistry()
	tool := &countingTool{name: "probe", permission: tools.LevelAuto}
	require.NoError(t, reg.Register(tool))

	c := &scriptedClient{script: []any{
		callTool("probe", map[string]any{"fail_validation": true}),
		respond("bad arguments"),
	}}
	engine, _ := newTestEngine(t, c, reg, nil, Options{})

	resp, err := engine.RunTurn(context.Background(), NewSession(""), "probe")
	require.NoError(t, err)
	assert.Equal(t, "bad arguments", resp.Text)
	assert.Zero(t, tool.invoked, "handler must not run on invalid arguments")
	assert.Contains(t, c.prompts[1], "rejected arguments")
}

func TestRunTurnToolFailureContinues(t *testing.T) {
	reg := tools.NewRegistry()
	tool := &countingTool{name: "probe", permission: tools.LevelAuto, err: errors.New("disk on fire")}
	require.NoError(t, reg.Register(tool))

	c := &scriptedClient{script: []any{
		callTool("probe", nil),
		respond("the probe failed"),
	}}
	engine, _ := newTestEngine(t, c, reg, nil, Options{})

	resp, err := engine.RunTurn(context.Background(), NewSession(""), "probe")
	require.NoError(t, err)
	assert.Equal(t, "the probe failed", resp.Text)
	assert.Contains(t, c.prompts[1], "disk on fire")
}

func TestRunTurnModelRetryOnce(t *testing.T) {
	c := &scriptedClient{script: []any{
		errors.New("transient model error"),
		respond("recovered"),
	}}
	engine, _ := newTestEngine(t, c, nil, nil, Options{})

	resp, err := engine.RunTurn(context.Background(), NewSession(""), "hello")
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
	assert.Equal(t, 2, resp.Steps, "the retry consumes a step")

	// The retry prompt carries the corrective note.
	require.Len(t, c.prompts, 2)
	assert.NotContains(t, c.prompts[0], "could not be interpreted")
	assert.Contains(t, c.prompts[1], "could not be interpreted")
}

func TestRunTurnModelFailsTwice(t *testing.T) {
	c := &scriptedClient{script: []any{
		errors.New("bad output"),
		errors.New("still bad"),
	}}
	engine, _ := newTestEngine(t, c, nil, nil, Options{})

	_, err := engine.RunTurn(context.Background(), NewSession(""), "hello")
	require.Error(t, err)

	var mdErr *ModelDecisionError
	require.ErrorAs(t, err, &mdErr)
	assert.Equal(t, 2, mdErr.Attempts)
}

func TestRunTurnUnrecognizedKindFailsAfterRetry(t *testing.T) {
	c := &scriptedClient{script: []any{
		&client.Decision{Kind: "garbage"},
		&client.Decision{Kind: "garbage"},
	}}
	engine, _ := newTestEngine(t, c, nil, nil, Options{MaxPlanSteps: 6})

	_, err := engine.RunTurn(context.Background(), NewSession(""), "hello")
	require.Error(t, err)

	var mdErr *ModelDecisionError
	require.ErrorAs(t, err, &mdErr, "bad kinds must degrade the turn, not burn the step budget")
	assert.Equal(t, 2, mdErr.Attempts)
	assert.Equal(t, 2, c.calls)

	// The retry carried the corrective note.
	require.Len(t, c.prompts, 2)
	assert.Contains(t, c.prompts[1], "could not be interpreted")
}

func TestRunTurnUnrecognizedKindThenRecovers(t *testing.T) {
	c := &scriptedClient{script: []any{
		&client.Decision{Kind: "garbage"},
		respond("recovered"),
	}}
	engine, _ := newTestEngine(t, c, nil, nil, Options{})

	resp, err := engine.RunTurn(context.Background(), NewSession(""), "hello")
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
}

func TestRunTurnMaxSteps(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&countingTool{name: "probe", permission: tools.LevelAuto, result: tools.NewSuccessResult("ok")}))

	// Model loops forever on tool calls, never responds.
	c := &scriptedClient{script: []any{
		callTool("probe", nil),
		callTool("probe", nil),
		callTool("probe", nil),
	}}
	engine, _ := newTestEngine(t, c, reg, nil, Options{MaxPlanSteps: 3})

	_, err := engine.RunTurn(context.Background(), NewSession(""), "probe forever")
	assert.ErrorIs(t, err, ErrMaxStepsExceeded)
	assert.True(t, IsFatal(err))
}

func TestRunTurnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &scriptedClient{script: []any{respond("never reached")}}
	engine, _ := newTestEngine(t, c, nil, nil, Options{})

	// The cancelled context still allows the initial memory write (the
	// store itself ignores ctx without an embedder), then the loop exits.
	_, err := engine.RunTurn(ctx, NewSession(""), "hello")
	assert.ErrorIs(t, err, ErrTurnCancelled)
	assert.True(t, IsFatal(err))
}

func TestRunTurnCancelledDuringSuspension(t *testing.T) {
	reg := tools.NewRegistry()
	tool := &countingTool{name: "destroy", permission: tools.LevelConfirm}
	require.NoError(t, reg.Register(tool))

	ctx, cancel := context.WithCancel(context.Background())
	gate := approval.NewGate(time.Minute, nil)
	gate.SetNotifier(func(req *approval.Request) {
		go cancel()
	})

	c := &scriptedClient{script: []any{callTool("destroy", nil)}}
	engine, store := newTestEngine(t, c, reg, gate, Options{})

	_, err := engine.RunTurn(ctx, NewSession(""), "destroy x")
	assert.ErrorIs(t, err, ErrTurnCancelled)
	assert.Zero(t, tool.invoked)

	// Memory written before the suspension is retained.
	assert.Equal(t, 1, store.Count())
}

func TestRunTurnTaskScopedRecords(t *testing.T) {
	c := &scriptedClient{script: []any{respond("noted")}}
	engine, store := newTestEngine(t, c, nil, nil, Options{})

	session := NewSession("task-42")
	_, err := engine.RunTurn(context.Background(), session, "remember the answer")
	require.NoError(t, err)

	records, err := store.Query(context.Background(), "answer", "task-42", 10)
	require.NoError(t, err)
	require.NotEmpty(t, records)
	for _, rec := range records {
		assert.Equal(t, "task-42", rec.TaskID)
	}
}
