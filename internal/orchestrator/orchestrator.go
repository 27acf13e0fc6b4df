// Package orchestrator owns the main loop: it walks the fixed phase
// registry sequentially, enforces budget and approval gates, and applies
// the retry-and-fallback policy around each phase.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/boshu2/autoforge/internal/approval"
	"github.com/boshu2/autoforge/internal/checkpoint"
	"github.com/boshu2/autoforge/internal/config"
	"github.com/boshu2/autoforge/internal/contracts"
	"github.com/boshu2/autoforge/internal/executor"
	"github.com/boshu2/autoforge/internal/metrics"
	"github.com/boshu2/autoforge/internal/phase"
	"github.com/boshu2/autoforge/internal/wfcontext"
)

// phases whose failure is not safely re-entrant: re-running them from
// scratch with a different executor risks double-committing, double
// branching or re-opening a PR.
var nonReentrantPhases = map[string]bool{
	"commit_prep":    true,
	"conflict_check": true,
	"pr_creation":    true,
	"pr_self_review": true,
	"preflight":      true,
	"setup":          true,
}

// phases that already alternate between agents internally, so a second,
// orchestrator-level fallback swap would be redundant.
var internalAlternationPhases = map[string]bool{
	"lint_check":     true,
	"test_execution": true,
}

// Orchestrator wires the phase registry to its collaborators and drives
// the main loop.
type Orchestrator struct {
	Config    *config.Config
	Context   *wfcontext.Context
	Phases    []phase.Phase
	Executors *executor.Registry
	Executor  executor.Executor

	Git       contracts.GitDriver
	Commands  contracts.CommandDetector
	Notifier  contracts.Notifier
	Approvals *approval.Store
	Checkpoints *checkpoint.Manager
	Log       *Logger
	Metrics   *metrics.Registry

	budgetWarned bool
}

// New constructs an Orchestrator ready to run a fresh workflow. It
// enforces the autonomous-mode container precondition before returning
// anything usable.
func New(cfg *config.Config, ctx *wfcontext.Context, collaborators Collaborators) (*Orchestrator, error) {
	if err := checkAutonomousPreconditions(cfg.AutonomousMode); err != nil {
		return nil, err
	}

	executors := collaborators.Executors
	if executors == nil {
		executors = executor.NewRegistry()
	}
	primary, err := executors.Create(cfg.Agent.Type, ctx.GetWorkingDir())
	if err != nil {
		return nil, fmt.Errorf("construct primary executor: %w", err)
	}

	log := collaborators.Log
	if log == nil {
		log = NewDiscardLogger()
	}

	return &Orchestrator{
		Config:      cfg,
		Context:     ctx,
		Phases:      phase.NewRegistry(),
		Executors:   executors,
		Executor:    primary,
		Git:         collaborators.Git,
		Commands:    collaborators.Commands,
		Notifier:    collaborators.Notifier,
		Approvals:   approval.NewStore(ctx.PlansDir),
		Checkpoints: collaborators.Checkpoints,
		Log:         log,
		Metrics:     collaborators.Metrics,
	}, nil
}

// Collaborators bundles the out-of-core dependencies New needs. Fields
// left nil fall back to a safe default except Git and Commands, which a
// real run must supply. Metrics is nil unless config.MetricsConfig.Enabled
// is set, in which case the CLI wires a metrics.Registry in.
type Collaborators struct {
	Executors   *executor.Registry
	Git         contracts.GitDriver
	Commands    contracts.CommandDetector
	Notifier    contracts.Notifier
	Checkpoints *checkpoint.Manager
	Log         *Logger
	Metrics     *metrics.Registry
}

// FromCheckpoint reconstructs an Orchestrator from a stored checkpoint,
// ready for ResumeWorkflow.
func FromCheckpoint(id string, cfg *config.Config, checkpoints *checkpoint.Manager, collaborators Collaborators) (*Orchestrator, error) {
	ctx, err := checkpoints.Load(id)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", id, err)
	}
	collaborators.Checkpoints = checkpoints
	return New(cfg, ctx, collaborators)
}

// Run drives the main loop starting at startIndex (0 for a fresh run).
func (o *Orchestrator) Run(startIndex int) error {
	o.notify(contracts.EventWorkflowStarted, map[string]any{"task": o.Context.TaskSlug, "run_id": o.Context.RunID})

	for i, p := range o.Phases {
		if i < startIndex {
			continue
		}
		if !o.Config.PhaseConfigFor(p.Name()).IsEnabled() {
			continue
		}

		if err := o.runPhase(p); err != nil {
			o.notify(contracts.EventWorkflowFailed, map[string]any{"phase": p.Name(), "error": err.Error()})
			return err
		}

		if p.Name() == "setup" && o.Context.WorktreePath != "" {
			if err := o.rehomeForWorktree(); err != nil {
				return err
			}
		}
	}

	o.notify(contracts.EventWorkflowComplete, map[string]any{"task": o.Context.TaskSlug, "cost": o.Context.TotalCostUSD})
	o.cleanup(true)
	return nil
}

// ResumeWorkflow walks the registry to the first phase not already in
// CompletedPhases and resumes the main loop from there.
func (o *Orchestrator) ResumeWorkflow() error {
	start := 0
	for i, p := range o.Phases {
		if !o.Context.IsPhaseCompleted(p.Name()) {
			start = i
			break
		}
		start = i + 1
	}
	return o.Run(start)
}

// rehomeForWorktree re-creates the active executor rooted at the new
// worktree and materializes the rules file, the post-setup step of the
// main loop.
func (o *Orchestrator) rehomeForWorktree() error {
	exec, err := o.Executors.Create(o.Config.Agent.Type, o.Context.WorktreePath)
	if err != nil {
		return fmt.Errorf("recreate executor for worktree: %w", err)
	}
	o.Executor = exec
	return writeRules(o.Context.WorktreePath, o.Config.Rules)
}

// writeRules materializes the enabled/custom rule lines the worktree's
// agent invocations should see into a single file at its root.
func writeRules(worktreeDir string, rules config.RulesConfig) error {
	if len(rules.EnabledRules) == 0 && len(rules.CustomRules) == 0 {
		return nil
	}
	content := "# Workflow rules\n\n"
	for _, r := range rules.EnabledRules {
		content += "- " + r + "\n"
	}
	for _, r := range rules.CustomRules {
		content += "- " + r + "\n"
	}
	return os.WriteFile(worktreeDir+"/.forge-rules.md", []byte(content), 0o644)
}

// runPhase drives one phase: checkpoint, budget gate, preconditions,
// then the retry-and-fallback loop, then completion bookkeeping and the
// approval gate.
func (o *Orchestrator) runPhase(p phase.Phase) error {
	name := p.Name()
	o.Context.CurrentPhase = name
	o.checkpoint()

	pc := o.Config.PhaseConfigFor(name)
	if o.Context.BudgetRemaining() < pc.EstimatedCost {
		return &BudgetExceededError{CurrentCost: o.Context.TotalCostUSD, BudgetLimit: o.Context.BudgetLimit}
	}

	if ok, reason := p.ValidatePreconditions(o.deps()); !ok {
		return &PreflightFailedError{Reason: reason}
	}

	o.notify(contracts.EventPhaseStarted, map[string]any{"phase": name})

	started := time.Now()
	result := o.runAttempts(p, pc)
	o.observeDuration(name, time.Since(started))

	if costErr := o.Context.AddCost(name, result.CostUSD); costErr != nil {
		o.notify(contracts.EventWorkflowFailed, map[string]any{"phase": name, "error": costErr.Error()})
		return &BudgetExceededError{CurrentCost: o.Context.TotalCostUSD, BudgetLimit: o.Context.BudgetLimit}
	}
	o.checkBudgetWarning()
	o.observeCost(name, result.CostUSD)
	o.observeBudgetRemaining()

	if !result.Success {
		o.observePhaseFailed(name, string(result.FailureCategory))
		o.Log.LogOutput("phase_failed", name, "phase failed", result.Error, map[string]any{"category": string(result.FailureCategory)})
		o.notify(contracts.EventPhaseFailed, map[string]any{"phase": name, "error": result.Error, "category": string(result.FailureCategory)})
		o.cleanup(false)
		if name == "preflight" {
			return &PreflightFailedError{Reason: result.Error}
		}
		return &PhaseFailedError{Phase: name, Cause: result.Error}
	}

	o.observePhaseComplete()
	o.Context.MarkPhaseComplete(name)
	if result.SessionID != "" {
		o.Context.SetSessionID(name, result.SessionID)
	}
	o.copyArtifacts(name, result.Artifacts)
	o.checkpoint()

	notifyData := map[string]any{"phase": name, "cost": result.CostUSD}
	if result.ExecutedBy != "" {
		notifyData["executed_by"] = result.ExecutedBy
	}
	o.notify(contracts.EventPhaseComplete, notifyData)

	if p.ApprovalGate() || o.Config.Approvals.GateEnabled(name) {
		o.notify(contracts.EventApprovalNeeded, map[string]any{"phase": name})
		if !o.Approvals.WaitForApproval(name, o.Config.Approvals.TimeoutHours) {
			return &ApprovalTimeoutError{Phase: name}
		}
	}
	return nil
}

// runAttempts runs the within-phase-retry loop, then the fallback loop if
// retries are exhausted and the phase is fallback-eligible. The returned
// Result's CostUSD is the sum across every attempt, so the caller records
// the full cost regardless of which attempt finally succeeded.
func (o *Orchestrator) runAttempts(p phase.Phase, pc config.PhaseConfig) phase.Result {
	var totalCost float64
	var last phase.Result

	maxRetries := pc.MaxRetries
	for attempt := 0; ; attempt++ {
		last = p.Run(o.deps())
		totalCost += last.CostUSD
		if last.Success {
			last.CostUSD = totalCost
			return last
		}
		if last.FailureCategory == phase.Oscillating {
			break
		}
		if attempt >= maxRetries {
			break
		}
		o.observeRetry(p.Name())
		o.notify(contracts.EventPhaseRetry, map[string]any{"phase": p.Name(), "attempt": attempt + 1})
	}

	if o.shouldAttemptFallback(p, last) {
		fbResult, fbCost := o.runFallback(p, pc)
		totalCost += fbCost
		if fbResult.Success {
			o.observeFallback(p.Name(), "success")
			fbResult.ExecutedBy = o.Config.Fallback.FallbackAgent
			fbResult.Warnings = append(fbResult.Warnings, "executed by fallback agent after primary failure")
			fbResult.CostUSD = totalCost
			return fbResult
		}
		o.observeFallback(p.Name(), "failure")
		last = fbResult
	}

	last.CostUSD = totalCost
	return last
}

// shouldAttemptFallback decides whether a failed phase may be re-run on
// the fallback executor.
func (o *Orchestrator) shouldAttemptFallback(p phase.Phase, result phase.Result) bool {
	fb := o.Config.Fallback
	if fb.FallbackAgent == "" || fb.MaxFallbackAttempts <= 0 {
		return false
	}
	name := p.Name()
	if nonReentrantPhases[name] || internalAlternationPhases[name] {
		return false
	}
	if o.Config.Debate.PhaseEnabled(name) {
		return false
	}
	if o.Context.BudgetRemaining() < o.Config.PhaseConfigFor(name).EstimatedCost {
		return false
	}
	if fb.Trigger == "all_errors" {
		return true
	}
	return result.FailureCategory == phase.AgentSpecific
}

// runFallback swaps the active executor to the configured fallback agent,
// retries up to max_fallback_attempts times, and unconditionally restores
// the original executor before returning, panics included, via
// defer+recover.
func (o *Orchestrator) runFallback(p phase.Phase, pc config.PhaseConfig) (result phase.Result, totalCost float64) {
	fallback, err := o.Executors.Create(o.Config.Fallback.FallbackAgent, o.Context.GetWorkingDir())
	if err != nil {
		return phase.Result{Success: false, Error: fmt.Sprintf("construct fallback executor: %v", err), FailureCategory: phase.Fatal}, 0
	}

	original := o.Executor
	o.Executor = fallback
	defer func() {
		o.Executor = original
		if r := recover(); r != nil {
			result = phase.Result{Success: false, Error: fmt.Sprintf("fallback panicked: %v", r), FailureCategory: phase.Fatal}
		}
	}()

	for attempt := 0; attempt < o.Config.Fallback.MaxFallbackAttempts; attempt++ {
		result = p.Run(o.deps())
		totalCost += result.CostUSD
		if result.Success {
			return result, totalCost
		}
		if result.FailureCategory == phase.AgentSpecific {
			break
		}
	}
	return result, totalCost
}

// copyArtifacts namespaces a phase's returned artifacts as
// "{phase}_{key}" before storing them on Context.
func (o *Orchestrator) copyArtifacts(phaseName string, artifacts map[string]any) {
	for key, value := range artifacts {
		o.Context.SetArtifact(phaseName+"_"+key, value)
	}
}

// checkBudgetWarning emits a one-time-per-crossing warning once usage
// reaches 80% of the limit.
func (o *Orchestrator) checkBudgetWarning() {
	if o.budgetWarned || o.Context.BudgetLimit <= 0 {
		return
	}
	if o.Context.TotalCostUSD >= 0.8*o.Context.BudgetLimit {
		o.budgetWarned = true
		o.notify(contracts.EventBudgetWarning, map[string]any{
			"total_cost": o.Context.TotalCostUSD,
			"limit":      o.Context.BudgetLimit,
		})
	}
}

// observeDuration, observeCost, observeRetry, observeFallback,
// observeBudgetRemaining, observePhaseComplete and observePhaseFailed feed
// internal/metrics.Registry when the CLI wired one in (config metrics.enabled);
// they are no-ops otherwise, so the main loop never branches on whether
// metrics are on.
func (o *Orchestrator) observeDuration(phase string, d time.Duration) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (o *Orchestrator) observeCost(phase string, cost float64) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.PhaseCost.WithLabelValues(phase).Set(cost)
}

func (o *Orchestrator) observeRetry(phase string) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.RetryTotal.WithLabelValues(phase).Inc()
}

func (o *Orchestrator) observeFallback(phase, outcome string) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.FallbackTotal.WithLabelValues(phase, outcome).Inc()
}

func (o *Orchestrator) observeBudgetRemaining() {
	if o.Metrics == nil {
		return
	}
	o.Metrics.BudgetRemaining.Set(o.Context.BudgetRemaining())
}

func (o *Orchestrator) observePhaseComplete() {
	if o.Metrics == nil {
		return
	}
	o.Metrics.PhasesComplete.Inc()
}

func (o *Orchestrator) observePhaseFailed(phase, category string) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.PhasesFailed.WithLabelValues(phase, category).Inc()
}

// checkpoint persists the current context. A checkpoint write failure is
// logged, never raised: losing one snapshot must not fail the workflow.
func (o *Orchestrator) checkpoint() {
	if o.Checkpoints == nil {
		return
	}
	id, err := o.Checkpoints.Create(o.Context)
	if err != nil {
		o.Log.Log("checkpoint_error", o.Context.CurrentPhase, err.Error(), nil)
		return
	}
	o.notify(contracts.EventCheckpointCreated, map[string]any{"checkpoint_id": id})
}

// cleanup removes the worktree on success only if it is safe to (PR
// created and branch pushed); on failure, only if explicitly configured
// and safe.
func (o *Orchestrator) cleanup(success bool) {
	if o.Git == nil || o.Context.WorktreePath == "" {
		return
	}
	safe := o.Context.PRNumber != 0 && o.Context.BranchPushed
	if success {
		if !safe {
			return
		}
	} else if !o.Config.Git.CleanupOnFail || !safe {
		return
	}

	ctx := context.Background()
	if err := o.Git.RemoveWorktree(ctx, o.Context.WorktreePath, false); err != nil {
		o.Log.Log("cleanup_error", o.Context.CurrentPhase, err.Error(), nil)
		return
	}
	if !success && o.Config.Git.CleanupRemoteOnFail && o.Context.BranchName != "" {
		_ = o.Git.DeleteRemoteBranch(ctx, o.Context.BranchName)
	}
}

func (o *Orchestrator) notify(event string, data map[string]any) {
	if o.Notifier != nil {
		o.Notifier.Notify(event, data)
	}
	o.Log.Log(event, o.Context.CurrentPhase, "", data)
}

func (o *Orchestrator) deps() phase.Deps {
	return phase.Deps{
		Context:  o.Context,
		Executor: o.Executor,
		Registry: o.Executors,
		Config:   o.Config,
		Git:      o.Git,
		Commands: o.Commands,
	}
}
