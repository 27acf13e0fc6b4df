package phase

// Documentation updates docs/comments/changelogs reflecting the change.
type Documentation struct{ base }

func NewDocumentation() *Documentation {
	return &Documentation{base: base{
		name:           "documentation",
		timeoutSeconds: 600,
		maxTurns:       20,
		allowedTools:   []string{"Read", "Write", "Edit", "Grep", "Glob"},
		permissionMode: "acceptEdits",
	}}
}

func (p *Documentation) Run(deps Deps) Result {
	prompt := "Update any documentation, comments, or changelog entries this change requires. " +
		"Skip this if the task needs none.\n\nTask: " + deps.Context.TaskDescription
	return runSimple(deps, p, prompt)
}
