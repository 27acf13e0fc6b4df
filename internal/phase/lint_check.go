package phase

// LintCheck runs the project's detected lint command in the same bounded
// fix loop as test_execution, and declares fresh_context so lint fixes
// aren't biased by the implementation session's prior reasoning.
type LintCheck struct{ base }

func NewLintCheck() *LintCheck {
	return &LintCheck{base: base{
		name:           "lint_check",
		timeoutSeconds: 600,
		maxTurns:       30,
		allowedTools:   []string{"Read", "Write", "Edit", "Grep", "Glob", "Bash"},
		permissionMode: "acceptEdits",
		freshContext:   true,
	}}
}

func (p *LintCheck) Run(deps Deps) Result {
	pc := deps.Config.PhaseConfigFor(p.Name())
	return runFixLoop(deps, p, fixLoopConfig{
		commandKind:    "lint",
		maxIterations:  pc.MaxIterations,
		commandTimeout: pc.CommandTimeout,
		baselineOn:     pc.BaselineOn(),
	})
}
