package phase

// FixReviewIssues applies the code_review phase's findings.
type FixReviewIssues struct{ base }

func NewFixReviewIssues() *FixReviewIssues {
	return &FixReviewIssues{base: base{
		name:           "fix_review_issues",
		timeoutSeconds: 1200,
		maxTurns:       50,
		allowedTools:   []string{"Read", "Write", "Edit", "Grep", "Glob", "Bash"},
		permissionMode: "acceptEdits",
	}}
}

func (p *FixReviewIssues) Run(deps Deps) Result {
	review, _ := deps.Context.GetArtifact("code_review_output_path", "").(string)
	prompt := "Address every issue raised in the review at " + review + ". " +
		"Do not introduce unrelated changes.\n\nTask: " + deps.Context.TaskDescription
	return runSimple(deps, p, prompt)
}
