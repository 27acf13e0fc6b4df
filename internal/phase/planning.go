package phase

// Planning turns the research artifact into an implementation plan.
// Review-grade: declares fresh_context so planning never inherits
// research's session bias.
type Planning struct{ base }

func NewPlanning() *Planning {
	return &Planning{base: base{
		name:           "planning",
		timeoutSeconds: 900,
		maxTurns:       30,
		allowedTools:   []string{"Read", "Grep", "Glob"},
		permissionMode: "plan",
		freshContext:   true,
	}}
}

func (p *Planning) Run(deps Deps) Result {
	research, _ := deps.Context.GetArtifact("research_output_path", "").(string)
	prompt := "Produce a concrete, step-by-step implementation plan for the task below, " +
		"informed by the research report at " + research + ".\n\nTask: " + deps.Context.TaskDescription
	return runReviewGrade(deps, p, "plan", prompt)
}
