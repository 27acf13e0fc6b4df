package orchestrator

import "fmt"

// Named errors for the terminal workflow states. Phases convert
// their own internal failures into a non-success phase.Result, which the
// main loop turns into one of these. A checkpoint Load failure surfaces
// from FromCheckpoint as a wrapped error; checkpoint create failures are
// logged and never fail the workflow.

// BudgetExceededError is terminal; resumable via checkpoint after raising
// the configured limit.
type BudgetExceededError struct {
	CurrentCost float64
	BudgetLimit float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: $%.2f / $%.2f", e.CurrentCost, e.BudgetLimit)
}

// ApprovalTimeoutError is terminal; resumable after the user creates the
// approval file.
type ApprovalTimeoutError struct {
	Phase string
}

func (e *ApprovalTimeoutError) Error() string {
	return fmt.Sprintf("approval timed out waiting for phase %q", e.Phase)
}

// PhaseFailedError means a phase exhausted retries and fallback.
type PhaseFailedError struct {
	Phase string
	Cause string
}

func (e *PhaseFailedError) Error() string {
	return fmt.Sprintf("phase %q failed: %s", e.Phase, e.Cause)
}

// PreflightFailedError is terminal at phase 0.
type PreflightFailedError struct {
	Reason string
}

func (e *PreflightFailedError) Error() string {
	return fmt.Sprintf("preflight failed: %s", e.Reason)
}

// ContainerRequiredError is terminal at orchestrator construction.
type ContainerRequiredError struct{}

func (e *ContainerRequiredError) Error() string {
	return "autonomous_mode requires running inside a container (or the explicit opt-out env var)"
}
