package phase

import "fmt"

// FinalVerification re-runs the project's build and test commands once as
// a final sanity check, with no fix loop — by this point the phases that
// fix things have already run. A phase configured soft_fail=true records
// the failure as a warning instead of failing the workflow.
type FinalVerification struct{ base }

func NewFinalVerification() *FinalVerification {
	return &FinalVerification{base: base{name: "final_verification", timeoutSeconds: 600}}
}

func (p *FinalVerification) Run(deps Deps) Result {
	pc := deps.Config.PhaseConfigFor(p.Name())
	workdir := deps.Context.GetWorkingDir()

	var warnings []string
	for _, kind := range []string{"build", "test"} {
		command, ok := deps.Commands.GetCommand(workdir, kind, deps.Config.Commands[kind])
		if !ok {
			continue
		}
		passed, stdout, stderr, err := deps.Commands.RunCommand(nilCtx(), workdir, command, pc.CommandTimeout)
		if err != nil || !passed {
			msg := fmt.Sprintf("%s command failed: %s", kind, truncate(stdout+stderr, 500))
			if pc.SoftFail {
				warnings = append(warnings, msg)
				continue
			}
			return failResult(msg, Fixable)
		}
	}

	r := successResult(0, "", nil)
	r.Warnings = warnings
	return r
}
