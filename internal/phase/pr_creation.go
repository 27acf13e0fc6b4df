package phase

import (
	"fmt"
	"regexp"
	"strconv"
)

// prURLPattern extracts a PR number and URL from a GitHub CLI's stdout,
// e.g. "https://github.com/org/repo/pull/123".
var prURLPattern = regexp.MustCompile(`https?://\S*?/pull/(\d+)\S*`)

// PRCreation pushes the branch and invokes the executor to run the GitHub
// CLI, then parses the resulting PR URL. Not fallback-eligible.
type PRCreation struct{ base }

func NewPRCreation() *PRCreation {
	return &PRCreation{base: base{
		name:           "pr_creation",
		timeoutSeconds: 300,
		maxTurns:       10,
		allowedTools:   []string{"Read", "Bash"},
	}}
}

func (p *PRCreation) Run(deps Deps) Result {
	ctx := nilCtx()
	workdir := deps.Context.GetWorkingDir()

	if err := deps.Git.Push(ctx, workdir, deps.Context.BranchName); err != nil {
		return failResult(fmt.Sprintf("push: %v", err), Fatal)
	}
	deps.Context.BranchPushed = true

	prompt := "Open a pull request for the current branch against " + deps.Config.Git.BaseBranch +
		" using the GitHub CLI, with a title and description summarizing this task, then print the PR URL.\n\n" +
		"Task: " + deps.Context.TaskDescription
	result, err := deps.Executor.Execute(prompt, execOptions(p, deps.Context))
	if err != nil {
		return failResult(fmt.Sprintf("create PR: %v", err), classifyFailure(err.Error(), deps))
	}
	result = result.Validate()
	if result.IsError {
		return failResult(result.Output, classifyFailure(result.Output, deps))
	}

	match := prURLPattern.FindStringSubmatch(result.Output)
	if match == nil {
		return failResult("could not parse PR URL from agent output", Fixable)
	}
	number, _ := strconv.Atoi(match[1])
	deps.Context.PRNumber = number
	deps.Context.PRURL = match[0]

	deps.Context.SetSessionID(p.Name(), result.SessionID)
	return successResult(result.CostUSD, result.SessionID, map[string]any{
		"pr_number": number,
		"pr_url":    match[0],
	})
}
