package phase

import "fmt"

// CommitPrep stages the working tree and commits it, using the executor
// only to draft the commit message. Not fallback-eligible: re-running a
// commit step is not safely re-entrant.
type CommitPrep struct{ base }

func NewCommitPrep() *CommitPrep {
	return &CommitPrep{base: base{
		name:           "commit_prep",
		timeoutSeconds: 300,
		maxTurns:       5,
		allowedTools:   []string{"Read", "Bash"},
	}}
}

func (p *CommitPrep) Run(deps Deps) Result {
	workdir := deps.Context.GetWorkingDir()

	prompt := "Write a concise, conventional commit message summarizing the change made for " +
		"this task. Output only the commit message text.\n\nTask: " + deps.Context.TaskDescription
	result, err := deps.Executor.Execute(prompt, execOptions(p, deps.Context))
	if err != nil {
		return failResult(fmt.Sprintf("draft commit message: %v", err), classifyFailure(err.Error(), deps))
	}
	result = result.Validate()
	if result.IsError {
		return failResult(result.Output, classifyFailure(result.Output, deps))
	}

	ctx := nilCtx()
	if err := deps.Git.AddFiles(ctx, workdir, "."); err != nil {
		return failResult(fmt.Sprintf("stage files: %v", err), Fatal)
	}
	hash, err := deps.Git.Commit(ctx, workdir, result.Output)
	if err != nil {
		return failResult(fmt.Sprintf("commit: %v", err), Fatal)
	}

	return successResult(result.CostUSD, "", map[string]any{"commit_hash": hash})
}
