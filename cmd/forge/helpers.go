package main

import (
	"errors"
	"regexp"
	"strings"

	"github.com/boshu2/autoforge/internal/checkpoint"
	"github.com/boshu2/autoforge/internal/config"
	"github.com/boshu2/autoforge/internal/contracts"
	"github.com/boshu2/autoforge/internal/executor"
	"github.com/boshu2/autoforge/internal/orchestrator"
)

// appName roots the XDG state directory (checkpoint.NewStore) and the
// FORGE_ALLOW_HOST_AUTONOMOUS / FORGE_ env-var family.
const appName = "forge"

var errInterrupted = errors.New("interrupted")

func isInterrupt(err error) bool {
	return errors.Is(err, errInterrupted)
}

// loadConfig reads cfgFile (if set), applies the --budget/--autonomous/
// --plans-dir persistent flag overrides, and returns the merged Config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if budgetLimit > 0 {
		cfg.BudgetLimitUSD = budgetLimit
	}
	if autonomous {
		cfg.AutonomousMode = true
	}
	if plansDirFlag != "" {
		cfg.PlansDir = plansDirFlag
	}
	return cfg, nil
}

// slugify derives a filesystem- and branch-name-safe slug from a free-text
// task description: lowercase, non-alphanumerics collapsed to a single
// hyphen, trimmed, capped at 50 characters so branch names stay readable.
func slugify(task string) string {
	lower := strings.ToLower(task)
	collapsed := regexp.MustCompile(`[^a-z0-9]+`).ReplaceAllString(lower, "-")
	trimmed := strings.Trim(collapsed, "-")
	if trimmed == "" {
		trimmed = "task"
	}
	if len(trimmed) > 50 {
		trimmed = strings.Trim(trimmed[:50], "-")
	}
	return trimmed
}

// buildCollaborators assembles the out-of-core dependencies
// internal/orchestrator needs: the default process-backed git driver and
// shell command detector, the
// config-driven notifier fan-out, a fresh executor registry, and the
// on-disk checkpoint manager. The CLI owns construction so
// internal/orchestrator and internal/phase never import os/exec or
// net/http directly.
func buildCollaborators(cfg *config.Config, repoPath string) (orchestrator.Collaborators, error) {
	store, err := checkpoint.NewStore(appName)
	if err != nil {
		return orchestrator.Collaborators{}, err
	}

	logger := orchestrator.NewDiscardLogger()

	return orchestrator.Collaborators{
		Executors:   executor.NewRegistry(),
		Git:         contracts.NewProcessGitDriver(repoPath),
		Commands:    contracts.NewShellCommandDetector(cfg.Commands),
		Notifier:    contracts.NewFanOutNotifier(cfg.Notifications),
		Checkpoints: checkpoint.NewManager(store),
		Log:         logger,
	}, nil
}
