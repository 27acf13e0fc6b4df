package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/boshu2/autoforge/internal/approval"
	"github.com/boshu2/autoforge/internal/config"
	"github.com/boshu2/autoforge/internal/httpapi"
	"github.com/boshu2/autoforge/internal/metrics"
	"github.com/boshu2/autoforge/internal/orchestrator"
	"github.com/boshu2/autoforge/internal/wfcontext"
)

var (
	runRepoPath string
	runTaskSlug string
	runLogPath  string
)

var runCmd = &cobra.Command{
	Use:   "run <task description>",
	Short: "Start a new workflow run for a task",
	Long: `run constructs a fresh Context for the given task description and drives
the fixed seventeen-phase pipeline from preflight through pr-self-review,
checkpointing after every phase so the run can be resumed later.

Examples:
  forge run "add rate limiting to the checkout API"
  forge run --repo ~/src/widgets --budget 25 "migrate to the v2 client"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runRepoPath, "repo", ".", "Path to the repository to work in")
	runCmd.Flags().StringVar(&runTaskSlug, "task-slug", "", "Override the derived filesystem-safe task slug")
	runCmd.Flags().StringVar(&runLogPath, "log-file", "", "Path to the JSONL log file; text log lines go to stderr (default: <plans-dir>/forge.jsonl)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	task := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repoPath, err := filepath.Abs(runRepoPath)
	if err != nil {
		return fmt.Errorf("resolve repo path: %w", err)
	}

	slug := runTaskSlug
	if slug == "" {
		slug = slugify(task)
	}

	plansDir := cfg.PlansDir
	if !filepath.IsAbs(plansDir) {
		plansDir = filepath.Join(repoPath, plansDir)
	}

	ctx := wfcontext.New(task, slug, repoPath, plansDir)
	ctx.BudgetLimit = cfg.BudgetLimitUSD

	collaborators, err := buildCollaborators(cfg, repoPath)
	if err != nil {
		return fmt.Errorf("assemble collaborators: %w", err)
	}

	if runLogPath == "" {
		runLogPath = filepath.Join(plansDir, appName+".jsonl")
	}
	if err := os.MkdirAll(filepath.Dir(runLogPath), 0o755); err == nil {
		if logger, logErr := orchestrator.NewLogger(runLogPath); logErr == nil {
			collaborators.Log = logger
			defer logger.Close()
		}
	}

	if cfg.Metrics.Enabled {
		collaborators.Metrics = metrics.New(prometheus.DefaultRegisterer)
	}

	if cfg.HTTPAPI.Enabled {
		startControlPlane(cfg, collaborators, approval.NewStore(plansDir), func() *wfcontext.Context { return ctx })
	}

	orch, err := orchestrator.New(cfg, ctx, collaborators)
	if err != nil {
		return err
	}

	if err := orch.Run(0); err != nil {
		printFailure(ctx, err)
		return err
	}

	fmt.Println(ctx.Summary())
	if ctx.PRURL != "" {
		fmt.Println("PR:", ctx.PRURL)
	}
	return nil
}

// printFailure renders the terminal-failure message: the phase name, a
// 500-char preview of the error, and the resume command with the current
// checkpoint id.
func printFailure(ctx *wfcontext.Context, err error) {
	msg := err.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	fmt.Fprintf(os.Stderr, "phase %q failed: %s\n", ctx.CurrentPhase, msg)
	if ctx.CheckpointID != "" {
		fmt.Fprintf(os.Stderr, "resume with: forge resume %s\n", ctx.CheckpointID)
	}
	if budgetErr, ok := err.(*orchestrator.BudgetExceededError); ok {
		fmt.Fprintf(os.Stderr, "budget: $%.2f / $%.2f\n", budgetErr.CurrentCost, budgetErr.BudgetLimit)
	}
}

// startControlPlane launches the optional local HTTP control plane in
// the background; a listener failure is silent to the workflow, which
// never depends on the control plane for its own progress.
func startControlPlane(cfg *config.Config, collaborators orchestrator.Collaborators, approvals *approval.Store, status httpapi.StatusSource) {
	addr := cfg.HTTPAPI.Addr
	if addr == "" {
		addr = "127.0.0.1:8787"
	}
	server := httpapi.New(addr, status, collaborators.Checkpoints, approvals)
	go func() {
		_ = server.ListenAndServe()
	}()
}
