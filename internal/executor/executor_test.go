package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate_FlagsSilentZeroCostResult(t *testing.T) {
	r := ExecutionResult{
		SessionID: "sess-1",
		Output:    "   ",
		CostUSD:   0.0,
		IsError:   false,
		AgentType: conversationalAgentType,
	}
	validated := r.Validate()
	assert.True(t, validated.IsError)
	assert.Contains(t, validated.Output, "auth/config")
	assert.Equal(t, "sess-1", validated.SessionID)
	assert.Equal(t, conversationalAgentType, validated.AgentType)
}

func TestValidate_LeavesHealthyResultAlone(t *testing.T) {
	r := ExecutionResult{Output: "done", CostUSD: 0.12}
	assert.Equal(t, r, r.Validate())
}

func TestValidate_ZeroCostWithOutputIsFine(t *testing.T) {
	// The alternate CLI never reports cost, so zero cost alone must not
	// flip the error flag.
	r := ExecutionResult{Output: "patched three files", CostUSD: 0.0, AgentType: alternateCodingAgentType}
	assert.False(t, r.Validate().IsError)
}

func TestValidate_ErroredResultPassesThrough(t *testing.T) {
	r := ExecutionResult{IsError: true, Output: ""}
	assert.Equal(t, r, r.Validate())
}

func TestDurationSeconds(t *testing.T) {
	r := ExecutionResult{DurationMS: 2500}
	assert.Equal(t, 2.5, r.DurationSeconds())
}

func TestConversationalBuildCommand_Defaults(t *testing.T) {
	e := NewConversationalExecutor("/tmp")
	cmd := e.BuildCommand("do the thing", Options{}, false)
	assert.Equal(t, []string{
		"claude", "-p", "do the thing",
		"--output-format", "json",
		"--max-turns", "50",
	}, cmd)
}

func TestConversationalBuildCommand_ResumeAndPermissionMode(t *testing.T) {
	e := NewConversationalExecutor("/tmp")
	cmd := e.BuildCommand("continue", Options{
		ResumeSession:  "abc123",
		PermissionMode: "plan",
		AllowedTools:   []string{"Read", "Grep"},
		MaxTurns:       7,
	}, false)
	assert.Contains(t, cmd, "--resume")
	assert.Contains(t, cmd, "abc123")
	assert.Contains(t, cmd, "--permission-mode")
	assert.Contains(t, cmd, "plan")
	assert.Contains(t, cmd, "Read,Grep")
	assert.Contains(t, cmd, "7")
}

func TestConversationalBuildCommand_DangerousModeWinsOverPermissionMode(t *testing.T) {
	e := NewConversationalExecutor("/tmp")
	cmd := e.BuildCommand("x", Options{PermissionMode: "acceptEdits", DangerousMode: true}, false)
	assert.Contains(t, cmd, "--dangerously-skip-permissions")
	assert.NotContains(t, cmd, "--permission-mode")
}

func TestConversationalBuildCommand_StreamingFlags(t *testing.T) {
	e := NewConversationalExecutor("/tmp")
	e.Verbose = true
	cmd := e.BuildCommand("x", Options{}, true)
	assert.Contains(t, cmd, "stream-json")
	assert.Contains(t, cmd, "--verbose")
	assert.NotContains(t, cmd, "--output-format json")
}

func TestConversationalBuildCommand_Model(t *testing.T) {
	e := NewConversationalExecutor("/tmp")
	e.Model = "opus"
	cmd := e.BuildCommand("x", Options{}, false)
	assert.Contains(t, cmd, "--model")
	assert.Contains(t, cmd, "opus")
}

func TestAlternateBuildCommand_PositionalPromptAndApprovalMode(t *testing.T) {
	e := NewAlternateCodingExecutor("/tmp")
	cmd := e.BuildCommand("fix the bug", Options{}, true)
	assert.Equal(t, "codex", cmd[0])
	assert.Equal(t, "fix the bug", cmd[1])
	assert.Contains(t, cmd, "--approval-mode")
	assert.Contains(t, cmd, "suggest")
	assert.Contains(t, cmd, "--quiet")
}

func TestAlternateApprovalModeMapping(t *testing.T) {
	e := NewAlternateCodingExecutor("/tmp")
	assert.Equal(t, "full-auto", e.mapApprovalMode("plan", true))
	assert.Equal(t, "suggest", e.mapApprovalMode("plan", false))
	assert.Equal(t, "auto-edit", e.mapApprovalMode("acceptEdits", false))
	assert.Equal(t, "suggest", e.mapApprovalMode("", false))
	assert.Equal(t, "suggest", e.mapApprovalMode("no-such-mode", false))
}

func TestParseCost_FieldVariants(t *testing.T) {
	assert.Equal(t, 0.42, parseCost(map[string]any{"cost_usd": 0.42}))
	assert.Equal(t, 0.1, parseCost(map[string]any{"cost": map[string]any{"total_usd": 0.1}}))
	assert.Equal(t, 0.2, parseCost(map[string]any{"cost": 0.2}))
	assert.Zero(t, parseCost(map[string]any{}))
}

func TestParseStreamResultEvent(t *testing.T) {
	data := map[string]any{
		"type":        "result",
		"session_id":  "sess-9",
		"result":      "all done",
		"cost_usd":    1.25,
		"duration_ms": float64(3200),
		"num_turns":   float64(4),
		"is_error":    false,
	}
	r := parseStreamResultEvent(conversationalAgentType, data, 5*time.Second, nil)
	assert.Equal(t, "sess-9", r.SessionID)
	assert.Equal(t, "all done", r.Output)
	assert.Equal(t, 1.25, r.CostUSD)
	assert.Equal(t, int64(3200), r.DurationMS)
	assert.Equal(t, 4, r.NumTurns)
	assert.False(t, r.IsError)
	assert.NotEmpty(t, r.RawOutput)
}

func TestParseStreamResultEvent_WaitErrorForcesErrorFlag(t *testing.T) {
	data := map[string]any{"result": "partial", "is_error": false}
	r := parseStreamResultEvent(conversationalAgentType, data, time.Second, assert.AnError)
	assert.True(t, r.IsError)
}

func TestParseDirectResult_PlainTextFallback(t *testing.T) {
	r := parseDirectResult(conversationalAgentType, []byte("not json at all"), time.Second, nil, nil)
	assert.Equal(t, "not json at all", r.Output)
	assert.Zero(t, r.CostUSD)
	assert.False(t, r.IsError)
}

func TestTimeoutResult(t *testing.T) {
	r := timeoutResult(alternateCodingAgentType, 30*time.Second, 31*time.Second, []byte("partial"))
	assert.True(t, r.IsError)
	assert.Contains(t, r.Output, "Timeout")
	assert.Equal(t, "partial", r.RawOutput)
	assert.Equal(t, alternateCodingAgentType, r.AgentType)
}

func TestCleanSubAgentEnv_StripsNestingGuardVars(t *testing.T) {
	t.Setenv("CLAUDECODE", "1")
	t.Setenv("CLAUDE_CODE_ENTRYPOINT", "cli")
	t.Setenv("UNRELATED_VAR", "keep")

	env := cleanSubAgentEnv()
	for _, e := range env {
		assert.NotContains(t, e, "CLAUDECODE=")
		assert.NotContains(t, e, "CLAUDE_CODE_")
	}
	assert.Contains(t, env, "UNRELATED_VAR=keep")
}

func TestAgentExecutionError_Format(t *testing.T) {
	err := newNotFoundError(conversationalAgentType, "claude", "Install with: npm install -g foo")
	assert.Contains(t, err.Error(), conversationalAgentType)
	assert.Contains(t, err.Error(), "claude CLI not found")
	assert.Contains(t, err.Error(), "npm install")
}
