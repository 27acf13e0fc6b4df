package phase

import "fmt"

// runSimple executes one executor call for phases that mutate the working
// tree directly (implementation, test writing, review fixes, documentation)
// rather than producing a standalone review artifact. The executor's own
// output becomes the phase's "summary" artifact.
func runSimple(deps Deps, p Phase, prompt string) Result {
	opts := execOptions(p, deps.Context)
	result, err := deps.Executor.Execute(prompt, opts)
	if err != nil {
		return failResult(fmt.Sprintf("%s: %v", p.Name(), err), classifyFailure(err.Error(), deps))
	}
	result = result.Validate()
	if result.IsError {
		return failResult(result.Output, classifyFailure(result.Output, deps))
	}

	deps.Context.SetSessionID(p.Name(), result.SessionID)
	return successResult(result.CostUSD, result.SessionID, map[string]any{"summary": result.Output})
}
