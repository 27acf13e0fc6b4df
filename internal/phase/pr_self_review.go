package phase

import "fmt"

// PRSelfReview performs a final, fresh-context read of the opened PR
// before handing it to a human. Not fallback-eligible.
type PRSelfReview struct{ base }

func NewPRSelfReview() *PRSelfReview {
	return &PRSelfReview{base: base{
		name:           "pr_self_review",
		timeoutSeconds: 600,
		maxTurns:       20,
		allowedTools:   []string{"Read", "Grep", "Glob", "Bash"},
		freshContext:   true,
	}}
}

func (p *PRSelfReview) Run(deps Deps) Result {
	prompt := fmt.Sprintf("Review pull request %s as a fresh pair of eyes, checking it actually "+
		"satisfies the task below and leaves nothing half-finished. Report any concerns; do not "+
		"make further changes.\n\nTask: %s", deps.Context.PRURL, deps.Context.TaskDescription)

	opts := execOptions(p, deps.Context)
	result, err := deps.Executor.Execute(prompt, opts)
	if err != nil {
		return failResult(fmt.Sprintf("%s: %v", p.Name(), err), classifyFailure(err.Error(), deps))
	}
	result = result.Validate()
	if result.IsError {
		return failResult(result.Output, classifyFailure(result.Output, deps))
	}

	deps.Context.SetSessionID(p.Name(), result.SessionID)
	return successResult(result.CostUSD, result.SessionID, map[string]any{"summary": result.Output})
}
