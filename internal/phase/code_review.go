package phase

// CodeReview critiques the implementation and tests. Review-grade,
// fresh_context, debate-eligible.
type CodeReview struct{ base }

func NewCodeReview() *CodeReview {
	return &CodeReview{base: base{
		name:           "code_review",
		timeoutSeconds: 900,
		maxTurns:       30,
		allowedTools:   []string{"Read", "Grep", "Glob", "Bash"},
		freshContext:   true,
	}}
}

func (p *CodeReview) Run(deps Deps) Result {
	prompt := "Review the implementation and tests just produced for the task below. " +
		"Flag correctness issues, missed edge cases, and test gaps. Produce a review report.\n\n" +
		"Task: " + deps.Context.TaskDescription
	return runReviewGrade(deps, p, "review", prompt)
}
