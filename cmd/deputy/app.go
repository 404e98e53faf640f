package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"deputy/internal/agent"
	"deputy/internal/approval"
	"deputy/internal/client"
	"deputy/internal/config"
	"deputy/internal/logging"
	"deputy/internal/memory"
	"deputy/internal/tools"
)

var (
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	approvalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	agentStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// app wires the engine, gate, registry, and memory store together and
// drives the interactive loop.
type app struct {
	cfg     *config.Config
	client  client.Client
	gate    *approval.Gate
	engine  *agent.Engine
	session *agent.Session
	stdin   *bufio.Reader
}

func newApp(ctx context.Context, cfg *config.Config, taskID string) (*app, error) {
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}
	if cfg.Logging.ToFile {
		if err := logging.EnableFileLogging(configDir, logging.Level(cfg.Logging.Level)); err != nil {
			return nil, err
		}
	}

	c, err := client.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// The memory store shares the Gemini connection for embeddings. With
	// the ollama provider there is no embedding backend; retrieval then
	// degrades to recency ordering.
	var embedder memory.Embedder
	if gemini, ok := c.(*client.GeminiClient); ok {
		embedder = memory.NewGeminiEmbedder(gemini.RawClient(), cfg.Model.EmbeddingModel)
	}

	memDir := cfg.Memory.Dir
	if memDir == "" {
		memDir = filepath.Join(configDir, "memory")
	}
	store, err := memory.NewStore(memDir, embedder, cfg.Engine.TaskMemoryWeight)
	if err != nil {
		return nil, err
	}

	workDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, workDir)

	gate := approval.NewGate(cfg.ApprovalTimeout(), cfg.Approval.AutoApproveTools)

	checkpoints, err := agent.NewCheckpointStore(filepath.Join(configDir, "checkpoints"))
	if err != nil {
		return nil, err
	}

	engine := agent.NewEngine(c, registry, gate, store, checkpoints, agent.Options{
		MaxPlanSteps:    cfg.Engine.MaxPlanSteps,
		MemoryTopK:      cfg.Engine.MemoryTopK,
		DecisionTimeout: cfg.DecisionTimeout(),
	})

	a := &app{
		cfg:     cfg,
		client:  c,
		gate:    gate,
		engine:  engine,
		session: agent.NewSession(taskID),
		stdin:   bufio.NewReader(os.Stdin),
	}

	gate.SetNotifier(a.promptApproval)
	engine.SetEvents(&agent.EventHandler{
		OnPlan: func(p *agent.Plan) {
			fmt.Print(detailStyle.Render(p.Summary()) + "\n")
		},
		OnToolStart: func(name string, args map[string]any) {
			fmt.Println(detailStyle.Render("→ " + name))
		},
		OnObservation: func(text string) {
			fmt.Println(detailStyle.Render("  " + text))
		},
	})

	// Pick up auto_approve_tools edits without a restart.
	go func() {
		_ = config.Watch(ctx, func(updated *config.Config) {
			gate.SetAutoApprove(updated.Approval.AutoApproveTools)
		})
	}()

	return a, nil
}

// promptApproval surfaces a pending request on the console and resolves it
// from the user's answer.
func (a *app) promptApproval(req *approval.Request) {
	fmt.Println(approvalStyle.Render("Approval required: " + req.Reason))
	if req.Detail != "" {
		fmt.Println(detailStyle.Render(req.Detail))
	}
	fmt.Print(approvalStyle.Render("Allow? [y/N] "))

	line, err := a.stdin.ReadString('\n')
	if err != nil {
		a.gate.Resolve(req.ID, approval.DecisionDenied)
		return
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		a.gate.Resolve(req.ID, approval.DecisionApproved)
	default:
		a.gate.Resolve(req.ID, approval.DecisionDenied)
	}
}

// Run drives the interactive loop until EOF or "exit".
func (a *app) Run(ctx context.Context) error {
	fmt.Println("deputy ready. Type a request, or \"exit\" to quit.")

	for {
		fmt.Print(promptStyle.Render("> "))
		line, err := a.stdin.ReadString('\n')
		if err != nil {
			return nil // EOF
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}

		a.runTurn(ctx, input)
	}
}

func (a *app) runTurn(ctx context.Context, input string) {
	resp, err := a.engine.RunTurn(ctx, a.session, input)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrMaxStepsExceeded):
			fmt.Println(errorStyle.Render("I ran out of steps before finishing. Try a smaller request."))
		case errors.Is(err, agent.ErrTurnCancelled):
			fmt.Println(errorStyle.Render("Turn cancelled."))
		default:
			fmt.Println(errorStyle.Render("Turn failed: " + err.Error()))
		}
		return
	}
	fmt.Println(agentStyle.Render(resp.Text))
}

// Resume continues any turns left suspended by a previous process.
func (a *app) Resume(ctx context.Context) error {
	checkpoints, err := a.engine.Checkpoints()
	if err != nil {
		return err
	}
	if len(checkpoints) == 0 {
		fmt.Println("No suspended turns.")
		return nil
	}

	for _, cp := range checkpoints {
		fmt.Printf("Resuming turn from %s (pending: %s)\n", cp.CreatedAt.Format("2006-01-02 15:04"), cp.PendingCall.Tool)
		resp, err := a.engine.ResumeTurn(ctx, cp)
		if err != nil {
			fmt.Println(errorStyle.Render("Resume failed: " + err.Error()))
			continue
		}
		fmt.Println(agentStyle.Render(resp.Text))
	}
	return nil
}

func (a *app) Close() {
	a.client.Close()
	logging.Close()
}
