// Command forge is the CLI front-end for the autonomous phase
// orchestrator. It does nothing more than parse flags, assemble the
// collaborators (internal/contracts' default implementations), and drive
// internal/orchestrator.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	budgetLimit  float64
	autonomous   bool
	plansDirFlag string
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Autonomous multi-phase software engineering orchestrator",
	Long: `forge drives a long-running, multi-phase software engineering workflow by
delegating individual reasoning steps to external agent CLIs.

Given a task description and a repository, it walks a fixed pipeline —
preflight, setup, research, planning, implementation, test writing, test
execution, code review, lint, documentation, commit, conflict resolution,
PR creation, self-review — producing a reviewed pull request (or local
branch), subject to a monetary budget.

Commands:
  run              Start a new workflow run for a task
  resume           Resume a run from its last checkpoint
  checkpoints      List stored checkpoints
  approve          Grant a file-based approval gate
  init-config      Write a starter config file
  phases           Print the fixed phase pipeline
  doctor           Check installed agent CLIs and environment`,
	SilenceUsage: true,
}

// Execute runs the root command, exiting 1 on any error and 130 on an
// interrupt.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if isInterrupt(err) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "forge:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (YAML); defaults apply when absent")
	rootCmd.PersistentFlags().Float64Var(&budgetLimit, "budget", 0, "Override budget_limit_usd")
	rootCmd.PersistentFlags().BoolVar(&autonomous, "autonomous", false, "Enable autonomous_mode (requires a container)")
	rootCmd.PersistentFlags().StringVar(&plansDirFlag, "plans-dir", "", "Override plans_dir")
}

func main() {
	Execute()
}
