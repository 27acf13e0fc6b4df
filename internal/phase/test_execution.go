package phase

// TestExecution runs the project's detected test command in a bounded fix
// loop, diffing net-new failures against the pre-existing baseline and
// the known-failures list.
type TestExecution struct{ base }

func NewTestExecution() *TestExecution {
	return &TestExecution{base: base{
		name:           "test_execution",
		timeoutSeconds: 1200,
		maxTurns:       40,
		allowedTools:   []string{"Read", "Write", "Edit", "Grep", "Glob", "Bash"},
		permissionMode: "acceptEdits",
	}}
}

func (p *TestExecution) Run(deps Deps) Result {
	pc := deps.Config.PhaseConfigFor(p.Name())
	return runFixLoop(deps, p, fixLoopConfig{
		commandKind:    "test",
		maxIterations:  pc.MaxIterations,
		commandTimeout: pc.CommandTimeout,
		baselineOn:     pc.BaselineOn(),
	})
}
