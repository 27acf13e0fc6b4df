// Package executor wraps the external agent CLIs (a conversational,
// session-resuming agent and an alternate auto-approving agent) behind a
// single Executor interface so the orchestrator never branches on which
// binary it is driving.
package executor

import (
	"fmt"
	"strings"
)

// ExecutionResult is the outcome of one agent CLI invocation.
type ExecutionResult struct {
	SessionID        string
	Output           string
	CostUSD          float64
	DurationMS       int64
	NumTurns         int
	IsError          bool
	RawOutput        string
	SubagentResults  []map[string]any
	AgentType        string
}

// DurationSeconds converts DurationMS to seconds.
func (r ExecutionResult) DurationSeconds() float64 {
	return float64(r.DurationMS) / 1000.0
}

// Validate flags a suspicious non-error result, zero cost with empty
// output, as an error: such a result usually means the agent exited
// cleanly without doing anything, most often an auth or configuration
// problem.
func (r ExecutionResult) Validate() ExecutionResult {
	if !r.IsError && r.CostUSD == 0.0 && strings.TrimSpace(r.Output) == "" {
		return ExecutionResult{
			SessionID:  r.SessionID,
			Output:     "Agent produced no output and reported zero cost (possible auth/config issue)",
			CostUSD:    0.0,
			DurationMS: r.DurationMS,
			NumTurns:   r.NumTurns,
			IsError:    true,
			RawOutput:  r.RawOutput,
			AgentType:  r.AgentType,
		}
	}
	return r
}

// StreamEvent is a single parsed line of an agent's streaming JSON output.
type StreamEvent struct {
	EventType string
	Data      map[string]any
	Source    string
}

// Options configures one Execute call. Not every field is honored by every
// executor — e.g. the alternate executor ignores ResumeSession and
// AllowedTools, which its CLI has no equivalent for.
type Options struct {
	PermissionMode string
	AllowedTools   []string
	MaxTurns       int
	TimeoutSeconds int
	ResumeSession  string
	DangerousMode  bool
	WorkingDir     string
	Stream         *bool // nil means "use the executor's default"
	StreamCallback func(StreamEvent)
}

// DefaultMaxTurns caps an agent invocation that sets no explicit limit.
const DefaultMaxTurns = 50

// DefaultTimeoutSeconds bounds an agent invocation with no explicit timeout.
const DefaultTimeoutSeconds = 600

// Executor is the common interface every agent CLI wrapper implements.
type Executor interface {
	// AgentType identifies the wrapped CLI ("primary-conversational", "alternate-coding", ...).
	AgentType() string
	// Execute runs prompt against the agent CLI and returns its result.
	// It never returns a raw process error for an execution-shaped
	// failure (timeout, non-zero exit) — those come back as an errored
	// ExecutionResult. A returned error means the CLI could not be run
	// at all (binary missing, or an unexpected internal failure), or, in
	// the conversational executor's streaming mode, that its startup or
	// stall watchdog stopped the process.
	Execute(prompt string, opts Options) (ExecutionResult, error)
	// CheckAvailable reports whether the CLI is installed and runnable.
	CheckAvailable() (bool, string)
	// BuildCommand constructs the argv for prompt, for logging and tests.
	BuildCommand(prompt string, opts Options, streaming bool) []string
}

// AgentExecutionError is raised when a CLI cannot be run at all (missing
// binary, or a failure outside the normal execute/timeout paths).
type AgentExecutionError struct {
	Message   string
	AgentType string
	Output    string
}

func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("[%s] %s", e.AgentType, e.Message)
}

func newNotFoundError(agentType, cliCommand, installInstructions string) *AgentExecutionError {
	return &AgentExecutionError{
		AgentType: agentType,
		Message:   fmt.Sprintf("%s CLI not found. %s", cliCommand, installInstructions),
	}
}
