package phase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boshu2/autoforge/internal/config"
	"github.com/boshu2/autoforge/internal/contracts"
	"github.com/boshu2/autoforge/internal/executor"
	"github.com/boshu2/autoforge/internal/wfcontext"
)

func TestReadKnownFailures_IgnoresCommentsAndBlanks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".sa-known-failures"),
		[]byte("# a comment\n\ntests/a.py::test_x\n  \ntests/b.py::test_y\n"), 0o644))

	ids := readKnownFailures(dir)
	assert.Equal(t, []string{"tests/a.py::test_x", "tests/b.py::test_y"}, ids)
}

func TestReadKnownFailures_MissingFileIsEmpty(t *testing.T) {
	assert.Nil(t, readKnownFailures(t.TempDir()))
}

func TestSameSet(t *testing.T) {
	assert.True(t, sameSet([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, sameSet([]string{"a"}, []string{"a", "b"}))
	assert.False(t, sameSet(nil, nil))
}

// fakeCommands is a scripted contracts.CommandDetector: each RunCommand
// call pops the next canned (passed, failure ids) pair from runs, and
// ParseTestOutput reports that run's ids.
type fakeCommands struct {
	cmd  string
	runs []struct {
		passed bool
		ids    []string
	}
	call int
}

func (f *fakeCommands) GetCommand(workdir, kind, override string) (string, bool) {
	return f.cmd, f.cmd != ""
}
func (f *fakeCommands) RunCommand(ctx context.Context, workdir, cmd string, timeout int) (bool, string, string, error) {
	r := f.runs[f.call]
	f.call++
	return r.passed, "", "", nil
}
func (f *fakeCommands) ParseTestOutput(text string) contracts.TestOutput {
	r := f.runs[f.call-1]
	return contracts.TestOutput{FailureIDs: r.ids, AllPassed: r.passed}
}
func (f *fakeCommands) DiffTestFailures(current, baseline, known []string, exitCodeFailed bool) (netNew, baselinePresent []string) {
	baseSet := map[string]bool{}
	for _, b := range baseline {
		baseSet[b] = true
	}
	for _, k := range known {
		baseSet[k] = true
	}
	for _, c := range current {
		if baseSet[c] {
			baselinePresent = append(baselinePresent, c)
		} else {
			netNew = append(netNew, c)
		}
	}
	if len(current) == 0 && exitCodeFailed {
		netNew = []string{"__unparsed_failure__"}
	}
	return netNew, baselinePresent
}

func TestRunFixLoop_SucceedsWhenNoNetNewFailures(t *testing.T) {
	ctx := wfcontext.New("task", "task", t.TempDir(), "")
	cmds := &fakeCommands{cmd: "go test ./...", runs: []struct {
		passed bool
		ids    []string
	}{
		{passed: true, ids: nil},
	}}
	deps := Deps{Context: ctx, Config: config.Default(), Commands: cmds}

	result := runFixLoop(deps, NewTestExecution(), fixLoopConfig{commandKind: "test", maxIterations: 3, commandTimeout: 60})
	assert.True(t, result.Success)
	assert.Equal(t, 1, cmds.call)
}

func TestRunFixLoop_InvokesExecutorOnNetNewThenSucceeds(t *testing.T) {
	ctx := wfcontext.New("task", "task", t.TempDir(), "")
	cmds := &fakeCommands{cmd: "go test ./...", runs: []struct {
		passed bool
		ids    []string
	}{
		{passed: false, ids: []string{"pkg/TestFoo"}},
		{passed: true, ids: nil},
	}}
	exec := &fakeExecutor{result: executor.ExecutionResult{Output: "fixed", CostUSD: 0.5, SessionID: "s1"}}
	deps := Deps{Context: ctx, Config: config.Default(), Commands: cmds, Executor: exec}

	result := runFixLoop(deps, NewTestExecution(), fixLoopConfig{commandKind: "test", maxIterations: 3, commandTimeout: 60})
	assert.True(t, result.Success)
	assert.Equal(t, 2, cmds.call)
}

func TestRunFixLoop_NoCommandDetectedSkipsWithWarning(t *testing.T) {
	ctx := wfcontext.New("task", "task", t.TempDir(), "")
	cmds := &fakeCommands{cmd: ""}
	deps := Deps{Context: ctx, Config: config.Default(), Commands: cmds}

	result := runFixLoop(deps, NewLintCheck(), fixLoopConfig{commandKind: "lint", maxIterations: 3, commandTimeout: 60})
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.Warnings)
}
