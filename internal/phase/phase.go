// Package phase defines the abstract phase contract and the fixed,
// ordered registry of the seventeen pipeline steps, one per stage of the
// research/plan/review/implementation pipeline.
package phase

import (
	"github.com/boshu2/autoforge/internal/config"
	"github.com/boshu2/autoforge/internal/contracts"
	"github.com/boshu2/autoforge/internal/executor"
	"github.com/boshu2/autoforge/internal/wfcontext"
)

// Result is the uniform outcome of Phase.Run.
type Result struct {
	Success        bool
	CostUSD        float64
	Error          string
	Artifacts      map[string]any
	TimedOut       bool
	SessionID      string
	FailureCategory FailureCategory
	ExecutedBy     string
	Warnings       []string
}

// FailureCategory classifies why a phase failed, driving the
// orchestrator's retry/fallback policy.
type FailureCategory string

const (
	Transient      FailureCategory = "TRANSIENT"
	Fixable        FailureCategory = "FIXABLE"
	Fatal          FailureCategory = "FATAL"
	Oscillating    FailureCategory = "OSCILLATING"
	AgentSpecific  FailureCategory = "AGENT_SPECIFIC"
)

// Deps bundles what a phase needs to run: the shared context, the
// currently active executor, resolved configuration, and the external
// git/command/notification collaborators.
type Deps struct {
	Context  *wfcontext.Context
	Executor executor.Executor
	Registry *executor.Registry
	Config   *config.Config
	Git      contracts.GitDriver
	Commands contracts.CommandDetector
}

// Phase is one step of the fixed pipeline.
type Phase interface {
	// Name is the config-lookup / artifact-key / approval-file / completion-list key.
	Name() string
	// TimeoutSeconds bounds a single executor call within this phase.
	TimeoutSeconds() int
	// MaxTurns caps the executor's turn budget.
	MaxTurns() int
	// AllowedTools is the tool allow-list passed to the executor.
	AllowedTools() []string
	// PermissionMode overrides the executor's default permission mode, if non-empty.
	PermissionMode() string
	// ApprovalGate reports whether a human approval blocks after this phase succeeds.
	ApprovalGate() bool
	// FreshContext reports whether this phase must start a brand-new agent
	// session rather than resuming the previous phase's session, so that
	// review phases stay unbiased.
	FreshContext() bool
	// ValidatePreconditions is checked by the orchestrator before Run.
	ValidatePreconditions(deps Deps) (bool, string)
	// Run executes the phase. It must not panic for expected failure
	// modes — those come back as a non-success Result.
	Run(deps Deps) Result
}

// base implements the metadata accessors every concrete phase shares,
// leaving only Run (and sometimes ValidatePreconditions) to be defined.
type base struct {
	name           string
	timeoutSeconds int
	maxTurns       int
	allowedTools   []string
	permissionMode string
	approvalGate   bool
	freshContext   bool
}

func (b base) Name() string           { return b.name }
func (b base) TimeoutSeconds() int    { return b.timeoutSeconds }
func (b base) MaxTurns() int          { return b.maxTurns }
func (b base) AllowedTools() []string { return b.allowedTools }
func (b base) PermissionMode() string { return b.permissionMode }
func (b base) ApprovalGate() bool     { return b.approvalGate }
func (b base) FreshContext() bool     { return b.freshContext }

// ValidatePreconditions defaults to "always ready". Preflight overrides it
// with the same answer and runs its environment checks in Run instead.
func (b base) ValidatePreconditions(Deps) (bool, string) { return true, "" }

// resumeSession returns the session to resume: empty for fresh-context
// phases, else the phase's own prior session.
func resumeSession(fresh bool, ctx *wfcontext.Context, name string) string {
	if fresh {
		return ""
	}
	return ctx.GetSessionID(name)
}

func execOptions(p Phase, ctx *wfcontext.Context) executor.Options {
	return executor.Options{
		PermissionMode: p.PermissionMode(),
		AllowedTools:   p.AllowedTools(),
		MaxTurns:       p.MaxTurns(),
		TimeoutSeconds: p.TimeoutSeconds(),
		ResumeSession:  resumeSession(p.FreshContext(), ctx, p.Name()),
	}
}

func failResult(errText string, category FailureCategory) Result {
	return Result{Success: false, Error: errText, FailureCategory: category}
}

func successResult(cost float64, sessionID string, artifacts map[string]any) Result {
	if artifacts == nil {
		artifacts = map[string]any{}
	}
	return Result{Success: true, CostUSD: cost, SessionID: sessionID, Artifacts: artifacts}
}
