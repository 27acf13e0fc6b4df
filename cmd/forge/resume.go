package main

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/boshu2/autoforge/internal/checkpoint"
	"github.com/boshu2/autoforge/internal/metrics"
	"github.com/boshu2/autoforge/internal/orchestrator"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <checkpoint-id>",
	Short: "Resume a run from its last checkpoint",
	Long: `resume loads a Context from a stored checkpoint and walks the phase
registry to the first phase not already in CompletedPhases, then
continues the main loop from there.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	id := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := checkpoint.NewStore(appName)
	if err != nil {
		return err
	}
	manager := checkpoint.NewManager(store)

	peek, err := manager.Load(id)
	if err != nil {
		return fmt.Errorf("load checkpoint %s: %w", id, err)
	}

	collaborators, err := buildCollaborators(cfg, peek.RepoPath)
	if err != nil {
		return fmt.Errorf("assemble collaborators: %w", err)
	}
	if logger, logErr := orchestrator.NewLogger(filepath.Join(peek.PlansDir, appName+".jsonl")); logErr == nil {
		collaborators.Log = logger
		defer logger.Close()
	}
	if cfg.Metrics.Enabled {
		collaborators.Metrics = metrics.New(prometheus.DefaultRegisterer)
	}

	orch, err := orchestrator.FromCheckpoint(id, cfg, manager, collaborators)
	if err != nil {
		return err
	}

	if err := orch.ResumeWorkflow(); err != nil {
		printFailure(orch.Context, err)
		return err
	}

	fmt.Println(orch.Context.Summary())
	return nil
}
