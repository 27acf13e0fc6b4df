package phase

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/boshu2/autoforge/internal/classify"
	"github.com/boshu2/autoforge/internal/debate"
)

// singleAgentPath is the artifact path a non-debated review-grade phase
// writes to, and the path a debated run's synthesis reuses — so
// downstream phases are oblivious to whether debate produced it.
func singleAgentPath(plansDir, phaseKey, taskSlug string) string {
	return filepath.Join(plansDir, fmt.Sprintf("%s-%s.md", phaseKey, taskSlug))
}

// runReviewGrade executes a review-grade phase's Run: either a single
// executor call (fresh-context when the phase declares it), or a full debate when the phase is wired
// into deps.Config.Debate.Phases.
func runReviewGrade(deps Deps, p Phase, phaseKey, taskPrompt string) Result {
	path := singleAgentPath(deps.Config.PlansDir, phaseKey, deps.Context.TaskSlug)

	if deps.Config.Debate.PhaseEnabled(p.Name()) {
		return runDebated(deps, p, phaseKey, taskPrompt)
	}

	opts := execOptions(p, deps.Context)
	result, err := deps.Executor.Execute(taskPrompt, opts)
	if err != nil {
		return failResult(fmt.Sprintf("%s: %v", p.Name(), err), classifyFailure(err.Error(), deps))
	}
	result = result.Validate()
	if result.IsError {
		return failResult(result.Output, classifyFailure(result.Output, deps))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return failResult(fmt.Sprintf("write %s artifact: %v", p.Name(), err), Fatal)
	}
	if err := os.WriteFile(path, []byte(result.Output), 0o644); err != nil {
		return failResult(fmt.Sprintf("write %s artifact: %v", p.Name(), err), Fatal)
	}

	deps.Context.SetSessionID(p.Name(), result.SessionID)
	return successResult(result.CostUSD, result.SessionID, map[string]any{"output_path": path})
}

func runDebated(deps Deps, p Phase, phaseKey, taskPrompt string) Result {
	paths := debate.BuildPaths(deps.Config.PlansDir, phaseKey, deps.Context.TaskSlug)

	outcome, err := debate.Run(debate.Params{
		Context:        deps.Context,
		Phase:          p.Name(),
		Paths:          paths,
		Registry:       deps.Registry,
		WorkingDir:     deps.Context.GetWorkingDir(),
		Debate:         deps.Config.Debate,
		TaskPrompt:     taskPrompt,
		AllowedTools:   p.AllowedTools(),
		MaxTurns:       p.MaxTurns(),
		TimeoutSeconds: p.TimeoutSeconds(),
		DangerousMode:  deps.Config.Agent.DangerousMode,
	})
	if err != nil {
		return failResult(fmt.Sprintf("%s debate: %v", p.Name(), err), classifyFailure(err.Error(), deps))
	}

	return successResult(outcome.TotalCost, outcome.SynthesisSession, map[string]any{
		"output_path":    paths.Final,
		"primary_cost":   outcome.PrimaryCost,
		"secondary_cost": outcome.SecondaryCost,
	})
}

// classifyFailure maps an error text to a retry-policy failure category
// using the error classifier: agent-origin failures are flagged
// AGENT_SPECIFIC (fallback-eligible); everything else is FIXABLE.
func classifyFailure(errText string, deps Deps) FailureCategory {
	agentType := ""
	if deps.Executor != nil {
		agentType = deps.Executor.AgentType()
	}
	if classify.IsAgentSpecific(errText, agentType) {
		return AgentSpecific
	}
	return Fixable
}
