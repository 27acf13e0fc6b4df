// Package debate implements the two-role, three-turn deliberation that
// replaces a single-agent phase Run for review-grade phases: research,
// planning, plan-review, code-review.
//
// Everything the engine stores or looks up — file paths, session keys,
// transcript attribution, cost partitioning — is keyed by role (primary/
// secondary), never by agent kind, so a debate between two instances of
// the same agent is a legal configuration.
package debate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/boshu2/autoforge/internal/config"
	"github.com/boshu2/autoforge/internal/executor"
	"github.com/boshu2/autoforge/internal/wfcontext"
)

const (
	RolePrimary   = "primary"
	RoleSecondary = "secondary"
)

// Paths is the set of role-indexed and transcript file paths one debated
// phase writes to.
type Paths struct {
	Primary    string // {plans_dir}/{phase_key}-{task_slug}-primary.md
	Secondary  string // {plans_dir}/{phase_key}-{task_slug}-secondary.md (feedback mode never writes it)
	Transcript string // {plans_dir}/debates/{phase_key}-{task_slug}-debate.md
	Final      string // {plans_dir}/{phase_key}-{task_slug}.md — same path a single-agent Run would use
}

// BuildPaths derives the standard debate file layout for one phase.
func BuildPaths(plansDir, phaseKey, taskSlug string) Paths {
	base := fmt.Sprintf("%s-%s", phaseKey, taskSlug)
	return Paths{
		Primary:    filepath.Join(plansDir, base+"-primary.md"),
		Secondary:  filepath.Join(plansDir, base+"-secondary.md"),
		Transcript: filepath.Join(plansDir, "debates", base+"-debate.md"),
		Final:      filepath.Join(plansDir, base+".md"),
	}
}

// Params configures one debate run.
type Params struct {
	Context     *wfcontext.Context
	Phase       string // phase key used for session/artifact naming, e.g. "research"
	Paths       Paths
	Registry    *executor.Registry
	WorkingDir  string
	Debate      config.DebateConfig
	// TaskPrompt is the phase-specific instructions (what to research, plan,
	// or review); the debate protocol wraps it with turn-appropriate framing.
	TaskPrompt string
	AllowedTools   []string
	MaxTurns       int
	TimeoutSeconds int
	DangerousMode  bool
}

// message is one recorded Turn-2 exchange entry. ID is a random message
// id for transcript cross-referencing; Role, never agent kind, is the
// attribution key.
type message struct {
	ID    string
	Role  string
	Index int
	Text  string
	cost  float64
}

// Result is the outcome of one debate run, shaped so callers can treat it
// like a single-agent PhaseResult.
type Result struct {
	FinalOutput   string
	TotalCost     float64
	PrimaryCost   float64
	SecondaryCost float64
	Turn1Primary   executor.ExecutionResult
	Turn1Secondary executor.ExecutionResult
	SynthesisSession string
}

// Run drives the full three-turn exchange and returns the synthesized
// final artifact, written to Paths.Final.
func Run(p Params) (Result, error) {
	mode := p.Debate.Mode
	if mode == "" {
		mode = "feedback"
	}

	primaryExec, secondaryExec, err := p.executors()
	if err != nil {
		return Result{}, err
	}

	turn1Primary, turn1Secondary, err := p.runTurn1(mode, primaryExec, secondaryExec)
	if err != nil {
		return Result{}, err
	}

	messages, err := p.runTurn2(mode, primaryExec, secondaryExec, turn1Primary, turn1Secondary)
	if err != nil {
		return Result{}, err
	}

	synthesis, err := p.runSynthesis(primaryExec, messages)
	if err != nil {
		return Result{}, err
	}

	if err := writeFile(p.Paths.Final, synthesis.Output); err != nil {
		return Result{}, fmt.Errorf("write synthesis artifact: %w", err)
	}

	primaryCost := turn1Primary.CostUSD + synthesis.CostUSD
	secondaryCost := turn1Secondary.CostUSD
	for _, m := range messages {
		if m.Role == RolePrimary {
			primaryCost += m.cost
		} else {
			secondaryCost += m.cost
		}
	}

	return Result{
		FinalOutput:      synthesis.Output,
		TotalCost:        primaryCost + secondaryCost,
		PrimaryCost:      primaryCost,
		SecondaryCost:    secondaryCost,
		Turn1Primary:     turn1Primary,
		Turn1Secondary:   turn1Secondary,
		SynthesisSession: synthesis.SessionID,
	}, nil
}

func (p Params) executors() (primary, secondary executor.Executor, err error) {
	primaryType := p.Debate.PrimaryAgent
	secondaryType := p.Debate.SecondaryAgent

	primary, err = p.Registry.Create(primaryType, p.WorkingDir)
	if err != nil {
		return nil, nil, fmt.Errorf("construct primary debate executor: %w", err)
	}
	if secondaryType == "" {
		return primary, primary, nil
	}
	secondary, err = p.Registry.Create(secondaryType, p.WorkingDir)
	if err != nil {
		return nil, nil, fmt.Errorf("construct secondary debate executor: %w", err)
	}
	return primary, secondary, nil
}

// secondaryDangerous: cross-agent secondary calls are always
// dangerous_mode=true (the alternate CLI cannot answer permission
// prompts); same-agent debates respect the caller's flag for both roles.
func (p Params) secondaryDangerous() bool {
	if p.Debate.PrimaryAgent != p.Debate.SecondaryAgent && p.Debate.SecondaryAgent != "" {
		return true
	}
	return p.DangerousMode
}

func (p Params) opts(resumeSession string, dangerous bool) executor.Options {
	return executor.Options{
		AllowedTools:   p.AllowedTools,
		MaxTurns:       p.MaxTurns,
		TimeoutSeconds: p.TimeoutSeconds,
		ResumeSession:  resumeSession,
		DangerousMode:  dangerous,
	}
}

// runTurn1 runs primary (and, in debate mode, secondary) Turn-1 analyses.
// Each writes to its role-indexed file; the "resume optimization" skips a
// role whose file already holds non-empty content from a prior attempt.
func (p Params) runTurn1(mode string, primaryExec, secondaryExec executor.Executor) (primary, secondary executor.ExecutionResult, err error) {
	// Each goroutine writes only to its own result/error pair — never a
	// shared variable — so the parallel path below has no data race.
	var primaryResult, secondaryResult executor.ExecutionResult
	var primaryErr, secondaryErr error

	runPrimary := func() error {
		primaryResult, primaryErr = p.turn1For(RolePrimary, primaryExec, p.Paths.Primary, false)
		return primaryErr
	}
	runSecondary := func() error {
		secondaryResult, secondaryErr = p.turn1For(RoleSecondary, secondaryExec, p.Paths.Secondary, p.secondaryDangerous())
		return secondaryErr
	}

	if mode != "debate" {
		if err := runPrimary(); err != nil {
			return executor.ExecutionResult{}, executor.ExecutionResult{}, err
		}
		return primaryResult, executor.ExecutionResult{}, nil
	}

	if p.Debate.ParallelTurn1 {
		var g errgroup.Group
		g.Go(runPrimary)
		g.Go(runSecondary)
		if err := g.Wait(); err != nil {
			return executor.ExecutionResult{}, executor.ExecutionResult{}, err
		}
		return primaryResult, secondaryResult, nil
	}

	if err := runPrimary(); err != nil {
		return executor.ExecutionResult{}, executor.ExecutionResult{}, err
	}
	if err := runSecondary(); err != nil {
		return executor.ExecutionResult{}, executor.ExecutionResult{}, err
	}
	return primaryResult, secondaryResult, nil
}

func (p Params) turn1For(role string, exec executor.Executor, path string, dangerous bool) (executor.ExecutionResult, error) {
	if existing, ok := readExisting(path); ok {
		return executor.ExecutionResult{
			SessionID: p.Context.GetDebateSessionID(p.Phase, role, 1, nil),
			Output:    existing,
			AgentType: exec.AgentType(),
		}, nil
	}

	prompt := turn1Prompt(p.TaskPrompt, role)
	result, err := exec.Execute(prompt, p.opts("", dangerous))
	if err != nil {
		return executor.ExecutionResult{}, fmt.Errorf("turn 1 (%s): %w", role, err)
	}
	result = result.Validate()

	if err := writeFile(path, result.Output); err != nil {
		return executor.ExecutionResult{}, fmt.Errorf("write turn 1 (%s) artifact: %w", role, err)
	}
	p.Context.SetDebateSessionID(p.Phase, role, 1, result.SessionID, nil)
	return result, nil
}

// runTurn2 walks messages 1..max, alternating speakers, and returns the
// full transcript with each message's recorded cost.
func (p Params) runTurn2(mode string, primaryExec, secondaryExec executor.Executor, turn1Primary, turn1Secondary executor.ExecutionResult) ([]message, error) {
	total := p.Debate.MaxExchangeMessages()
	var transcript []message

	for i := 1; i <= total; i++ {
		role := speaker(mode, i)
		isFinal := i == total
		exec := primaryExec
		if role == RoleSecondary {
			exec = secondaryExec
		}

		resume := ""
		if role == RolePrimary {
			resume = p.Context.GetDebateSessionID(p.Phase, RolePrimary, 2, msgPtr(i-2))
		}

		prompt := turn2Prompt(p.TaskPrompt, mode, role, transcript, p.Paths, i, total, isFinal)
		dangerous := p.DangerousMode
		if role == RoleSecondary {
			dangerous = p.secondaryDangerous()
		}

		result, err := exec.Execute(prompt, p.opts(resume, dangerous))
		if err != nil {
			return nil, fmt.Errorf("turn 2 message %d (%s): %w", i, role, err)
		}
		result = result.Validate()

		p.Context.SetDebateSessionID(p.Phase, role, 2, result.SessionID, msgPtr(i))
		msg := message{ID: uuid.NewString(), Role: role, Index: i, Text: result.Output, cost: result.CostUSD}
		transcript = append(transcript, msg)

		if err := appendTranscript(p.Paths.Transcript, msg); err != nil {
			return nil, fmt.Errorf("append transcript message %d: %w", i, err)
		}
	}

	return transcript, nil
}

// runSynthesis executes the primary's Turn-3 synthesis, resuming from its
// final Turn-2 message session or, absent one, its Turn-1 session.
func (p Params) runSynthesis(primaryExec executor.Executor, messages []message) (executor.ExecutionResult, error) {
	resume := p.Context.GetSynthesisResumeSession(p.Phase, p.Debate.MaxExchangeMessages())
	prompt := synthesisPrompt(p.TaskPrompt, messages)

	result, err := primaryExec.Execute(prompt, p.opts(resume, p.DangerousMode))
	if err != nil {
		return executor.ExecutionResult{}, fmt.Errorf("turn 3 synthesis: %w", err)
	}
	result = result.Validate()
	p.Context.SetSessionID(p.Phase, result.SessionID)
	return result, nil
}

// speaker returns who authors exchange message i. Feedback mode's single
// message is secondary-authored (a review of the primary's Turn-1 work);
// debate mode alternates starting and ending on primary.
func speaker(mode string, i int) string {
	if mode == "feedback" {
		return RoleSecondary
	}
	if i%2 == 1 {
		return RolePrimary
	}
	return RoleSecondary
}

func msgPtr(n int) *int {
	if n < 1 {
		return nil
	}
	return &n
}

func turn1Prompt(taskPrompt, role string) string {
	return fmt.Sprintf("%s\n\nYou are the %s reviewer in a two-role deliberation. Produce your independent analysis now.", taskPrompt, role)
}

func turn2Prompt(taskPrompt, mode, role string, transcript []message, paths Paths, index, total int, isFinal bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nDebate exchange, message %d of %d (role: %s).\n", taskPrompt, index, total, role)
	if isFinal {
		b.WriteString("This is the final exchange message.\n")
	}
	fmt.Fprintf(&b, "Your own Turn-1 analysis: %s\n", pathFor(role, paths))
	if mode != "feedback" {
		fmt.Fprintf(&b, "The other role's Turn-1 analysis: %s\n", otherPathFor(role, paths))
	}
	if len(transcript) > 0 {
		b.WriteString("\nTranscript so far:\n")
		for _, m := range transcript {
			fmt.Fprintf(&b, "[%s, msg %d]: %s\n", m.Role, m.Index, m.Text)
		}
	}
	return b.String()
}

func synthesisPrompt(taskPrompt string, transcript []message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nSynthesize the final artifact from the deliberation below. "+
		"Resolve conflicts in this priority order: correctness with evidence > completeness > "+
		"consensus > your own prior position.\n\n", taskPrompt)
	for _, m := range transcript {
		fmt.Fprintf(&b, "[%s, msg %d]: %s\n", m.Role, m.Index, m.Text)
	}
	return b.String()
}

func pathFor(role string, paths Paths) string {
	if role == RolePrimary {
		return paths.Primary
	}
	return paths.Secondary
}

func otherPathFor(role string, paths Paths) string {
	if role == RolePrimary {
		return paths.Secondary
	}
	return paths.Primary
}

func readExisting(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(data)) == "" {
		return "", false
	}
	return string(data), true
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func appendTranscript(path string, m message) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "## [%s] message %d (%s, id %s)\n\n%s\n\n", m.Role, m.Index, time.Now().Format(time.RFC3339), m.ID, m.Text)
	return err
}
