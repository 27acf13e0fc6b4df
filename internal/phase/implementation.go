package phase

// Implementation carries out the reviewed plan against the working tree.
type Implementation struct{ base }

func NewImplementation() *Implementation {
	return &Implementation{base: base{
		name:           "implementation",
		timeoutSeconds: 1800,
		maxTurns:       80,
		allowedTools:   []string{"Read", "Write", "Edit", "Grep", "Glob", "Bash"},
		permissionMode: "acceptEdits",
	}}
}

func (p *Implementation) Run(deps Deps) Result {
	plan, _ := deps.Context.GetArtifact("plan_review_output_path", "").(string)
	if plan == "" {
		plan, _ = deps.Context.GetArtifact("planning_output_path", "").(string)
	}
	prompt := "Implement the plan at " + plan + " against the current working tree. " +
		"Make the minimal set of changes that satisfy it.\n\nTask: " + deps.Context.TaskDescription
	return runSimple(deps, p, prompt)
}
