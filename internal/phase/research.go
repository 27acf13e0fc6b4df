package phase

// Research investigates the task and repository, producing the research
// artifact every later phase reads. Review-grade: debate-eligible.
type Research struct{ base }

func NewResearch() *Research {
	return &Research{base: base{
		name:           "research",
		timeoutSeconds: 900,
		maxTurns:       30,
		allowedTools:   []string{"Read", "Grep", "Glob", "Bash"},
		permissionMode: "plan",
		freshContext:   false,
	}}
}

func (r *Research) Run(deps Deps) Result {
	prompt := "Research the following task against the current repository. " +
		"Identify relevant files, existing patterns, and constraints. Produce a " +
		"concise research report.\n\nTask: " + deps.Context.TaskDescription
	return runReviewGrade(deps, r, "research", prompt)
}
