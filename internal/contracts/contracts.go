// Package contracts declares the orchestrator's external collaborators —
// the git driver, project-type/test command detector, and notification
// fan-out — along with one filesystem/process-backed default
// implementation of each, sufficient to run a workflow end to end.
//
// The core (internal/orchestrator, internal/phase) depends only on these
// interfaces, never on the default implementations directly, so a future
// swap (a richer git backend, a webhook notifier) never touches phase or
// orchestrator code.
package contracts

import "context"

// GitDriver is the git operations contract the phases consume.
type GitDriver interface {
	Fetch(ctx context.Context) error
	IsClean(ctx context.Context) (bool, error)
	CommitsBehind(ctx context.Context, base string) (int, error)
	CurrentBranch(ctx context.Context) (string, error)
	DefaultBranch(ctx context.Context) (string, error)
	GenerateBranchName(slug, prefix string) string
	CreateWorktree(ctx context.Context, branch, dir, base string) (path string, err error)
	RemoveWorktree(ctx context.Context, path string, force bool) error
	Rebase(ctx context.Context, target string) (ok bool, conflicts []string, err error)
	AbortRebase(ctx context.Context) error
	AddFiles(ctx context.Context, dir string, paths ...string) error
	Commit(ctx context.Context, dir, message string) (hash string, err error)
	Push(ctx context.Context, dir, branch string) error
	DeleteRemoteBranch(ctx context.Context, branch string) error
	HasRemote(ctx context.Context) bool
	Log(ctx context.Context, dir string, n int) ([]string, error)
	EnsureIdentity(ctx context.Context, dir string) (name, email, source string, err error)
	CleanupUnreachableRemote(ctx context.Context) bool
}

// TestOutput is the parsed shape of one test-command run.
type TestOutput struct {
	Passed     int
	Failed     int
	Skipped    int
	Total      int
	Failures   []string
	FailureIDs []string
	AllPassed  bool
}

// CommandDetector resolves and runs the project's lint/test/build commands
// and parses their output.
type CommandDetector interface {
	GetCommand(workdir, kind string, override string) (string, bool)
	RunCommand(ctx context.Context, workdir, cmd string, timeoutSeconds int) (ok bool, stdout, stderr string, err error)
	ParseTestOutput(text string) TestOutput
	DiffTestFailures(current, baseline, known []string, exitCodeFailed bool) (netNew, baselinePresent []string)
}

// Notifier receives named lifecycle events.
type Notifier interface {
	Notify(event string, data map[string]any)
}

// Notification event names.
const (
	EventWorkflowStarted  = "workflow_started"
	EventPhaseStarted     = "phase_started"
	EventPhaseComplete    = "phase_complete"
	EventPhaseFailed      = "phase_failed"
	EventPhaseRetry       = "phase_retry"
	EventApprovalNeeded   = "approval_needed"
	EventWorkflowComplete = "workflow_complete"
	EventWorkflowFailed   = "workflow_failed"
	EventBudgetWarning    = "budget_warning"
	EventCheckpointCreated = "checkpoint_created"
	EventStreamEvent      = "stream_event"
)
