package phase

import "fmt"

// ConflictCheck rebases the branch onto the base branch; on conflict, it
// aborts the rebase and invokes the executor with the conflict list to
// attempt automated resolution. Not fallback-eligible.
type ConflictCheck struct{ base }

func NewConflictCheck() *ConflictCheck {
	return &ConflictCheck{base: base{
		name:           "conflict_check",
		timeoutSeconds: 600,
		maxTurns:       20,
		allowedTools:   []string{"Read", "Write", "Edit", "Bash"},
		permissionMode: "acceptEdits",
	}}
}

func (p *ConflictCheck) Run(deps Deps) Result {
	ctx := nilCtx()

	base, err := deps.Git.DefaultBranch(ctx)
	if err != nil || base == "" {
		base = deps.Config.Git.BaseBranch
	}

	ok, conflicts, err := deps.Git.Rebase(ctx, base)
	if err != nil {
		return failResult(fmt.Sprintf("rebase: %v", err), Fatal)
	}
	if ok {
		return successResult(0, "", map[string]any{"rebased_onto": base})
	}

	if err := deps.Git.AbortRebase(ctx); err != nil {
		return failResult(fmt.Sprintf("abort rebase: %v", err), Fatal)
	}

	prompt := fmt.Sprintf("Rebasing onto %s produced conflicts in:\n%s\n\nResolve them by re-applying "+
		"this task's intent on top of %s, then leave the working tree clean.\n\nTask: %s",
		base, joinLines(conflicts), base, deps.Context.TaskDescription)
	result, err := deps.Executor.Execute(prompt, execOptions(p, deps.Context))
	if err != nil {
		return failResult(fmt.Sprintf("conflict resolution: %v", err), classifyFailure(err.Error(), deps))
	}
	result = result.Validate()
	if result.IsError {
		return failResult(result.Output, classifyFailure(result.Output, deps))
	}

	deps.Context.SetSessionID(p.Name(), result.SessionID)
	return successResult(result.CostUSD, result.SessionID, map[string]any{"conflicts_resolved": conflicts})
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
