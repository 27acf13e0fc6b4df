package phase

import (
	"context"
	"fmt"
)

// Preflight runs a set of independent environment checks and reports them
// together: the phase fails iff any individual check fails.
type Preflight struct{ base }

func NewPreflight() *Preflight {
	return &Preflight{base: base{name: "preflight", timeoutSeconds: 30}}
}

func (p *Preflight) ValidatePreconditions(Deps) (bool, string) { return true, "" }

func (p *Preflight) Run(deps Deps) Result {
	ctx := context.Background()

	type check struct {
		name string
		ok   bool
		err  error
	}
	var checks []check

	available, _ := deps.Executor.CheckAvailable()
	checks = append(checks, check{"agent binary available", available, nil})

	clean, err := deps.Git.IsClean(ctx)
	checks = append(checks, check{"git working copy clean", clean, err})

	behind, err := deps.Git.CommitsBehind(ctx, deps.Config.Git.BaseBranch)
	checks = append(checks, check{"branch up to date", err == nil && behind == 0, err})

	_, _, _, identErr := deps.Git.EnsureIdentity(ctx, deps.Context.RepoPath)
	checks = append(checks, check{"git identity resolvable", identErr == nil, identErr})

	var failed []string
	for _, c := range checks {
		if c.ok {
			continue
		}
		msg := c.name
		if c.err != nil {
			msg = fmt.Sprintf("%s: %v", c.name, c.err)
		}
		failed = append(failed, msg)
	}

	if len(failed) > 0 {
		return failResult(fmt.Sprintf("preflight checks failed: %v", failed), Fatal)
	}
	return successResult(0, "", nil)
}
