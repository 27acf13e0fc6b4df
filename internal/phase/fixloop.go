package phase

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func nilCtx() context.Context { return context.Background() }

// fixLoopConfig carries the knobs a bounded fix-loop phase needs beyond
// the common Phase metadata.
type fixLoopConfig struct {
	commandKind    string // "test" or "lint", passed to CommandDetector.GetCommand
	maxIterations  int
	commandTimeout int
	baselineOn     bool
}

// runFixLoop is the bounded fix loop shared by
// test_execution and lint_check: detect a command, run it, and if it
// fails, invoke the executor to apply fixes and re-run, capped at
// maxIterations. Net-new failure diffing means pre-existing failures
// (the baseline, plus anything listed in .sa-known-failures) never block
// the phase — only failures that appear net-new during this phase do.
func runFixLoop(deps Deps, p Phase, cfg fixLoopConfig) Result {
	workdir := deps.Context.GetWorkingDir()

	command, ok := deps.Commands.GetCommand(workdir, cfg.commandKind, deps.Config.Commands[cfg.commandKind])
	if !ok {
		return Result{Success: true, Warnings: []string{fmt.Sprintf("no %s command detected, skipping", cfg.commandKind)}}
	}

	known := readKnownFailures(workdir)

	var baseline []string
	if cfg.baselineOn {
		baseline = captureBaseline(deps, workdir, command, cfg.commandTimeout)
	}

	var lastNetNew []string
	var totalCost float64
	var lastOutput string

	for iteration := 1; iteration <= cfg.maxIterations; iteration++ {
		passed, stdout, stderr, err := deps.Commands.RunCommand(nilCtx(), workdir, command, cfg.commandTimeout)
		if err != nil {
			return failResult(fmt.Sprintf("%s: run command: %v", p.Name(), err), Fixable)
		}
		parsed := deps.Commands.ParseTestOutput(stdout + "\n" + stderr)
		netNew, baselinePresent := deps.Commands.DiffTestFailures(parsed.FailureIDs, baseline, known, !passed)

		if len(netNew) == 0 {
			artifacts := map[string]any{"iterations": iteration}
			if len(baselinePresent) > 0 {
				artifacts["baseline_failures_present"] = baselinePresent
			}
			r := successResult(totalCost, "", artifacts)
			return r
		}

		if iteration == cfg.maxIterations {
			break
		}

		if sameSet(netNew, lastNetNew) {
			return failResult(fmt.Sprintf("%s: net-new failures unchanged across iterations: %v", p.Name(), netNew), Oscillating)
		}
		lastNetNew = netNew

		prompt := fmt.Sprintf("The %s command reported these net-new failures, fix them:\n%s\n\nOutput:\n%s",
			cfg.commandKind, strings.Join(netNew, "\n"), truncate(stdout+stderr, 4000))
		result, err := deps.Executor.Execute(prompt, execOptions(p, deps.Context))
		if err != nil {
			return failResult(fmt.Sprintf("%s: fix attempt: %v", p.Name(), err), classifyFailure(err.Error(), deps))
		}
		result = result.Validate()
		totalCost += result.CostUSD
		lastOutput = result.Output
		if result.IsError {
			return failResult(result.Output, classifyFailure(result.Output, deps))
		}
		deps.Context.SetSessionID(p.Name(), result.SessionID)
	}

	_ = lastOutput
	return failResult(fmt.Sprintf("%s: net-new failures remain after %d iterations: %v", p.Name(), cfg.maxIterations, lastNetNew), Fixable)
}

// captureBaseline runs command once, independent of the fix loop, to
// record pre-existing failures the loop should not hold against the task.
func captureBaseline(deps Deps, workdir, command string, timeout int) []string {
	_, stdout, stderr, err := deps.Commands.RunCommand(nilCtx(), workdir, command, timeout)
	if err != nil {
		return nil
	}
	parsed := deps.Commands.ParseTestOutput(stdout + "\n" + stderr)
	return parsed.FailureIDs
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}

// readKnownFailures reads "{workdir}/.sa-known-failures": one failure
// identifier per line, '#' comments and blank lines ignored.
func readKnownFailures(workdir string) []string {
	f, err := os.Open(filepath.Join(workdir, ".sa-known-failures"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids
}
