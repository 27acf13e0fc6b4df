package phase

// TestWriting adds or extends tests covering the implementation.
type TestWriting struct{ base }

func NewTestWriting() *TestWriting {
	return &TestWriting{base: base{
		name:           "test_writing",
		timeoutSeconds: 1200,
		maxTurns:       50,
		allowedTools:   []string{"Read", "Write", "Edit", "Grep", "Glob", "Bash"},
		permissionMode: "acceptEdits",
	}}
}

func (p *TestWriting) Run(deps Deps) Result {
	prompt := "Write or extend tests covering the implementation just made for the task below. " +
		"Favor realistic coverage of the new behavior over exhaustive edge cases.\n\nTask: " + deps.Context.TaskDescription
	return runSimple(deps, p, prompt)
}
