package phase

// PlanReview critiques the plan artifact before implementation starts.
// Review-grade, fresh_context, debate-eligible.
type PlanReview struct{ base }

func NewPlanReview() *PlanReview {
	return &PlanReview{base: base{
		name:           "plan_review",
		timeoutSeconds: 600,
		maxTurns:       20,
		allowedTools:   []string{"Read", "Grep", "Glob"},
		freshContext:   true,
	}}
}

func (p *PlanReview) Run(deps Deps) Result {
	plan, _ := deps.Context.GetArtifact("planning_output_path", "").(string)
	prompt := "Critically review the implementation plan at " + plan + " for correctness, " +
		"completeness, and risk. Revise it in place, keeping the same structure, and " +
		"produce the final reviewed plan.\n\nTask: " + deps.Context.TaskDescription
	return runReviewGrade(deps, p, "plan-review", prompt)
}
