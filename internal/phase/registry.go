package phase

// Order is the fixed pipeline order.
var Order = []string{
	"preflight",
	"setup",
	"research",
	"planning",
	"plan_review",
	"implementation",
	"test_writing",
	"test_execution",
	"code_review",
	"fix_review_issues",
	"lint_check",
	"documentation",
	"final_verification",
	"commit_prep",
	"conflict_check",
	"pr_creation",
	"pr_self_review",
}

// NewRegistry returns every concrete phase constructed fresh, in Order.
func NewRegistry() []Phase {
	return []Phase{
		NewPreflight(),
		NewSetup(),
		NewResearch(),
		NewPlanning(),
		NewPlanReview(),
		NewImplementation(),
		NewTestWriting(),
		NewTestExecution(),
		NewCodeReview(),
		NewFixReviewIssues(),
		NewLintCheck(),
		NewDocumentation(),
		NewFinalVerification(),
		NewCommitPrep(),
		NewConflictCheck(),
		NewPRCreation(),
		NewPRSelfReview(),
	}
}
