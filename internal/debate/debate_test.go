package debate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boshu2/autoforge/internal/config"
	"github.com/boshu2/autoforge/internal/executor"
	"github.com/boshu2/autoforge/internal/wfcontext"
)

// fakeExecutor is a minimal stub Executor for exercising the debate
// engine without spawning real agent CLIs.
type fakeExecutor struct {
	kind    string
	costs   float64
	calls   int
	session func(call int) string
}

func (f *fakeExecutor) AgentType() string { return f.kind }
func (f *fakeExecutor) CheckAvailable() (bool, string) { return true, "1.0" }
func (f *fakeExecutor) BuildCommand(prompt string, opts executor.Options, streaming bool) []string {
	return []string{f.kind}
}
func (f *fakeExecutor) Execute(prompt string, opts executor.Options) (executor.ExecutionResult, error) {
	f.calls++
	session := ""
	if f.session != nil {
		session = f.session(f.calls)
	}
	return executor.ExecutionResult{
		SessionID: session,
		Output:    "output from " + f.kind,
		CostUSD:   f.costs,
		AgentType: f.kind,
	}, nil
}

func newRegistry(t *testing.T, primary, secondary *fakeExecutor) *executor.Registry {
	t.Helper()
	reg := executor.NewRegistry()
	reg.Register("agent-a", func(string) executor.Executor { return primary })
	reg.Register("agent-b", func(string) executor.Executor { return secondary })
	return reg
}

func TestRun_FeedbackMode_SameAgentSessionsDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	ctx := wfcontext.New("demo task", "demo-task", dir, dir+"/plans")

	primary := &fakeExecutor{kind: "agent-a", costs: 1.0, session: func(n int) string {
		return fmt.Sprintf("session-%d", n)
	}}
	reg := newRegistry(t, primary, primary)

	result, err := Run(Params{
		Context:    ctx,
		Phase:      "research",
		Paths:      BuildPaths(ctx.PlansDir, "research", ctx.TaskSlug),
		Registry:   reg,
		WorkingDir: dir,
		Debate: config.DebateConfig{
			Enabled:       true,
			PrimaryAgent:  "agent-a",
			SecondaryAgent: "agent-a",
			Mode:          "feedback",
		},
		TaskPrompt: "do the research",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.FinalOutput)

	p1 := ctx.GetDebateSessionID("research", "primary", 1, nil)
	s1 := ctx.GetDebateSessionID("research", "secondary", 2, intPtr(1))
	assert.NotEmpty(t, p1)
	assert.NotEmpty(t, s1)
	assert.NotEqual(t, p1, s1)
	assert.Equal(t, p1, ctx.GetSynthesisResumeSession("research", 1))
}

func TestRun_DebateMode_CostsSumToTotal(t *testing.T) {
	dir := t.TempDir()
	ctx := wfcontext.New("demo task", "demo-task", dir, dir+"/plans")

	primary := &fakeExecutor{kind: "agent-a", costs: 1.0}
	secondary := &fakeExecutor{kind: "agent-b", costs: 2.0}
	reg := newRegistry(t, primary, secondary)

	result, err := Run(Params{
		Context:    ctx,
		Phase:      "planning",
		Paths:      BuildPaths(ctx.PlansDir, "plan", ctx.TaskSlug),
		Registry:   reg,
		WorkingDir: dir,
		Debate: config.DebateConfig{
			Enabled:        true,
			PrimaryAgent:   "agent-a",
			SecondaryAgent: "agent-b",
			Mode:           "debate",
			Intensity:      "low",
			ParallelTurn1:  true,
		},
		TaskPrompt: "do the planning",
	})
	require.NoError(t, err)
	assert.InDelta(t, result.PrimaryCost+result.SecondaryCost, result.TotalCost, 1e-9)
	assert.Greater(t, result.TotalCost, 0.0)
}

func TestRun_ResumesExistingTurn1Output(t *testing.T) {
	dir := t.TempDir()
	ctx := wfcontext.New("demo task", "demo-task", dir, dir+"/plans")
	paths := BuildPaths(ctx.PlansDir, "research", ctx.TaskSlug)

	require.NoError(t, writeFile(paths.Primary, "pre-existing analysis"))

	primary := &fakeExecutor{kind: "agent-a", costs: 5.0}
	reg := newRegistry(t, primary, primary)

	_, err := Run(Params{
		Context:    ctx,
		Phase:      "research",
		Paths:      paths,
		Registry:   reg,
		WorkingDir: dir,
		Debate: config.DebateConfig{
			Enabled:      true,
			PrimaryAgent: "agent-a",
			Mode:         "feedback",
		},
		TaskPrompt: "do the research",
	})
	require.NoError(t, err)
	// Turn 1 was skipped for primary (file pre-existed), so only the
	// Turn-2 feedback call and the Turn-3 synthesis call happen.
	assert.Equal(t, 2, primary.calls)
}

func intPtr(n int) *int { return &n }
