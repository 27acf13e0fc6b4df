// Package wfcontext implements the single mutable object threaded through
// an entire orchestrator run — task identity, git state, budget, completed
// phases, session continuity and artifacts.
package wfcontext

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBudgetLimitUSD applies when no budget limit is configured.
	DefaultBudgetLimitUSD = 15.0
	// IdlePhase is the initial value of CurrentPhase before the first phase runs.
	IdlePhase = "idle"
)

// Context is the single mutable object threaded through the workflow.
// Only the phase currently running and the orchestrator mutate it, and
// phases run strictly one at a time, so no locking is needed.
type Context struct {
	// Identity. RunID is random per workflow run, unlike CheckpointID,
	// which must stay stable across resumes.
	RunID           string `json:"run_id"`
	TaskDescription string `json:"task_description"`
	TaskSlug        string `json:"task_name"`
	RepoPath        string `json:"repo_path"`
	PlansDir        string `json:"plans_dir"`

	// Git state
	WorktreePath string `json:"worktree_path,omitempty"` // empty when no worktree has been created
	BranchName   string `json:"branch_name,omitempty"`
	BranchPushed bool   `json:"branch_pushed"`

	// Progress
	CurrentPhase          string    `json:"current_phase"`
	StartedAt             time.Time `json:"started_at"`
	CompletedPhases       []string  `json:"completed_phases"`
	CheckpointID          string    `json:"checkpoint_id,omitempty"`
	ResumedFromCheckpoint bool      `json:"resumed_from_checkpoint"`

	// PR state
	PRNumber int    `json:"pr_number,omitempty"`
	PRURL    string `json:"pr_url,omitempty"`

	// Budget
	TotalCostUSD float64            `json:"total_cost_usd"`
	BudgetLimit  float64            `json:"budget_limit_usd"`
	PhaseCosts   map[string]float64 `json:"phase_costs"`

	// Session continuity: phase name, or debate key "{phase}_{role}_t{turn}[_msg{n}]".
	SessionIDs map[string]string `json:"session_ids"`

	// Artifacts from completed phases, keyed "{phase}_{artifact}".
	Artifacts map[string]any `json:"artifacts"`
}

// New creates a Context ready to run: a fresh run id, the default budget
// limit, and current_phase "idle".
func New(taskDescription, taskSlug, repoPath, plansDir string) *Context {
	return &Context{
		RunID:           uuid.NewString(),
		TaskDescription: taskDescription,
		TaskSlug:        taskSlug,
		RepoPath:        repoPath,
		PlansDir:        plansDir,
		CurrentPhase:    IdlePhase,
		StartedAt:       time.Now(),
		BudgetLimit:     DefaultBudgetLimitUSD,
		PhaseCosts:      make(map[string]float64),
		SessionIDs:      make(map[string]string),
		Artifacts:       make(map[string]any),
	}
}

// AddCost records cost against a phase and enforces the budget.
//
// The increment happens before the check, so a failing phase's cost is
// still visible in the next checkpoint.
func (c *Context) AddCost(phase string, cost float64) error {
	c.TotalCostUSD += cost
	if c.PhaseCosts == nil {
		c.PhaseCosts = make(map[string]float64)
	}
	c.PhaseCosts[phase] += cost

	if c.TotalCostUSD > c.BudgetLimit {
		return newBudgetExceeded(c.TotalCostUSD, c.BudgetLimit)
	}
	return nil
}

// BudgetRemaining returns the unspent budget, never negative.
func (c *Context) BudgetRemaining() float64 {
	remaining := c.BudgetLimit - c.TotalCostUSD
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MarkPhaseComplete appends phase to CompletedPhases at most once.
func (c *Context) MarkPhaseComplete(phase string) {
	if c.IsPhaseCompleted(phase) {
		return
	}
	c.CompletedPhases = append(c.CompletedPhases, phase)
}

// IsPhaseCompleted reports whether phase already ran successfully.
func (c *Context) IsPhaseCompleted(phase string) bool {
	for _, p := range c.CompletedPhases {
		if p == phase {
			return true
		}
	}
	return false
}

// SetArtifact stores a phase artifact. Path-like values should already be
// plain strings; Context never stores a richer path type.
func (c *Context) SetArtifact(key string, value any) {
	if c.Artifacts == nil {
		c.Artifacts = make(map[string]any)
	}
	c.Artifacts[key] = value
}

// GetArtifact retrieves a previously stored artifact, or def if absent.
func (c *Context) GetArtifact(key string, def any) any {
	if v, ok := c.Artifacts[key]; ok {
		return v
	}
	return def
}

// SetSessionID stores a resumable session id for a simple (non-debate) phase key.
func (c *Context) SetSessionID(phase, sessionID string) {
	c.setSession(phase, sessionID)
}

// GetSessionID returns the stored session id for a simple phase key, or "".
func (c *Context) GetSessionID(phase string) string {
	return c.SessionIDs[phase]
}

func (c *Context) setSession(key, sessionID string) {
	if c.SessionIDs == nil {
		c.SessionIDs = make(map[string]string)
	}
	c.SessionIDs[key] = sessionID
}

// debateKey builds "{phase}_{role}_t{turn}" or, with a message number,
// "{phase}_{role}_t{turn}_msg{n}". role is "primary" or "secondary" — never
// the agent kind — so a debate between two instances of the same agent
// kind does not collide.
func debateKey(phase, role string, turn int, messageNum *int) string {
	if messageNum != nil {
		return fmt.Sprintf("%s_%s_t%d_msg%d", phase, role, turn, *messageNum)
	}
	return fmt.Sprintf("%s_%s_t%d", phase, role, turn)
}

// SetDebateSessionID stores a session id for one debate turn, keyed by role.
// messageNum is only meaningful for Turn 2; pass nil for Turns 1 and 3.
func (c *Context) SetDebateSessionID(phase, role string, turn int, sessionID string, messageNum *int) {
	c.setSession(debateKey(phase, role, turn, messageNum), sessionID)
}

// GetDebateSessionID retrieves a session id stored by SetDebateSessionID.
func (c *Context) GetDebateSessionID(phase, role string, turn int, messageNum *int) string {
	return c.SessionIDs[debateKey(phase, role, turn, messageNum)]
}

// GetSynthesisResumeSession returns the session the primary role's Turn-3
// synthesis should resume from: the latest Turn-2 primary message if any
// exists (checked from the highest plausible message number down to 1),
// else the primary's Turn-1 session.
func (c *Context) GetSynthesisResumeSession(phase string, maxExchangeMessages int) string {
	for n := maxExchangeMessages; n >= 1; n-- {
		msg := n
		if session := c.GetDebateSessionID(phase, "primary", 2, &msg); session != "" {
			return session
		}
	}
	return c.GetDebateSessionID(phase, "primary", 1, nil)
}

// GetWorkingDir returns the worktree path if one has been created, else the
// repo path.
func (c *Context) GetWorkingDir() string {
	if c.WorktreePath != "" {
		return c.WorktreePath
	}
	return c.RepoPath
}

// ElapsedTime returns time elapsed since StartedAt.
func (c *Context) ElapsedTime() time.Duration {
	return time.Since(c.StartedAt)
}

// ToDict serializes the Context to a plain map[string]any suitable for
// checkpoint storage. Timestamps become ISO-8601 strings via the json
// tags; every path-like field is already typed string.
func (c *Context) ToDict() (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal context to map: %w", err)
	}
	return m, nil
}

// FromDict reconstructs a Context from a map produced by ToDict.
// Round-trip is lossless modulo the timestamp coercion.
func FromDict(m map[string]any) (*Context, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal dict: %w", err)
	}
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	return &c, nil
}

// Summary renders a short human-readable status: task, phase, cost,
// elapsed, then branch/PR if present.
func (c *Context) Summary() string {
	s := fmt.Sprintf("Task: %s\nPhase: %s\nCost: $%.2f / $%.2f\nElapsed: %.0fs",
		c.TaskSlug, c.CurrentPhase, c.TotalCostUSD, c.BudgetLimit, c.ElapsedTime().Seconds())
	if c.BranchName != "" {
		s += fmt.Sprintf("\nBranch: %s", c.BranchName)
	}
	if c.PRURL != "" {
		s += fmt.Sprintf("\nPR: %s", c.PRURL)
	}
	return s
}
