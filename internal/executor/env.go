package executor

import (
	"os"
	"strings"
)

// cleanSubAgentEnv strips CLAUDECODE/CLAUDE_CODE_* from the parent
// environment before spawning a sub-agent process, so a sub-agent CLI
// does not trip the nesting guard that conversational CLIs use to refuse
// running inside another instance of themselves.
func cleanSubAgentEnv() []string {
	env := os.Environ()
	cleaned := make([]string, 0, len(env))
	for _, e := range env {
		if strings.HasPrefix(e, "CLAUDECODE=") || strings.HasPrefix(e, "CLAUDE_CODE_") {
			continue
		}
		cleaned = append(cleaned, e)
	}
	return cleaned
}
