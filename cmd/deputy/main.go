package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"deputy/internal/config"
)

var (
	version = "0.1.0"
	model   string
	taskID  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "deputy",
		Short: "Conversational agent with human-gated tool execution",
		Long: `Deputy is a conversational agent that plans multi-step tasks, executes
tools under human oversight, and retains semantic memory across turns.
Side-effecting tools never run without an approval decision.`,
		RunE: runApp,
	}

	rootCmd.PersistentFlags().StringVar(&model, "model", "", "model to use (overrides config)")
	rootCmd.PersistentFlags().StringVar(&taskID, "task", "", "task ID to scope memory to")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("deputy version %s\n", version)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "resume",
		Short: "Resume turns suspended on an approval request",
		RunE:  runResume,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if model != "" {
		cfg.Model.Name = model
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runApp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := newApp(cmd.Context(), cfg, taskID)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer app.Close()

	return app.Run(cmd.Context())
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := newApp(cmd.Context(), cfg, taskID)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer app.Close()

	return app.Resume(cmd.Context())
}
