package executor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakeCLI writes an executable shell script standing in for an agent
// binary and returns its path.
func writeFakeCLI(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-agent")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func boolPtr(b bool) *bool { return &b }

func TestConversationalStreaming_ParsesResultEvent(t *testing.T) {
	e := NewConversationalExecutor(t.TempDir())
	e.cliCommand = writeFakeCLI(t, `
echo '{"type":"system","subtype":"init","session_id":"sess-42"}'
echo '{"type":"assistant","message":{"content":"thinking"}}'
echo '{"type":"result","session_id":"sess-42","result":"finished the task","cost_usd":0.33,"num_turns":2,"is_error":false}'
`)

	var events []StreamEvent
	result, err := e.Execute("prompt", Options{
		Stream:         boolPtr(true),
		StreamCallback: func(ev StreamEvent) { events = append(events, ev) },
	})
	require.NoError(t, err)

	assert.Equal(t, "sess-42", result.SessionID)
	assert.Equal(t, "finished the task", result.Output)
	assert.Equal(t, 0.33, result.CostUSD)
	assert.Equal(t, 2, result.NumTurns)
	assert.False(t, result.IsError)

	require.Len(t, events, 3)
	assert.Equal(t, "system", events[0].EventType)
	assert.Equal(t, "assistant", events[1].EventType)
	assert.Equal(t, "result", events[2].EventType)
	assert.Equal(t, conversationalAgentType, events[0].Source)
}

func TestConversationalStreaming_SynthesizesResultWhenNoResultEvent(t *testing.T) {
	e := NewConversationalExecutor(t.TempDir())
	e.cliCommand = writeFakeCLI(t, `
echo '{"type":"assistant","message":{"content":"a"}}'
echo '{"type":"assistant","message":{"content":"b"}}'
`)

	result, err := e.Execute("prompt", Options{Stream: boolPtr(true)})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "without result event")
	assert.Equal(t, 2, result.NumTurns)
	assert.False(t, result.IsError)
}

func TestConversationalStreaming_NonZeroExitWithoutResultIsError(t *testing.T) {
	e := NewConversationalExecutor(t.TempDir())
	e.cliCommand = writeFakeCLI(t, `
echo '{"type":"assistant","message":{"content":"a"}}'
exit 3
`)

	result, err := e.Execute("prompt", Options{Stream: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestConversationalStreaming_CallbackPanicIsSwallowed(t *testing.T) {
	e := NewConversationalExecutor(t.TempDir())
	e.cliCommand = writeFakeCLI(t, `
echo '{"type":"result","result":"ok","cost_usd":0.01}'
`)

	result, err := e.Execute("prompt", Options{
		Stream:         boolPtr(true),
		StreamCallback: func(StreamEvent) { panic("callback bug") },
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Output)
}

func TestConversationalStreaming_TimeoutKillsProcess(t *testing.T) {
	e := NewConversationalExecutor(t.TempDir())
	e.cliCommand = writeFakeCLI(t, `sleep 10`)

	result, err := e.Execute("prompt", Options{Stream: boolPtr(true), TimeoutSeconds: 1})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Output, "Timeout")
}

func TestConversationalStreaming_MissingBinary(t *testing.T) {
	e := NewConversationalExecutor(t.TempDir())
	e.cliCommand = "definitely-not-a-real-agent-cli"

	_, err := e.Execute("prompt", Options{Stream: boolPtr(true)})
	var execErr *AgentExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message, "not found")
	assert.Contains(t, execErr.Message, e.installInstructions)
}

func TestConversationalDirect_ParsesJSONDocument(t *testing.T) {
	e := NewConversationalExecutor(t.TempDir())
	e.cliCommand = writeFakeCLI(t, `
echo '{"session_id":"d-1","result":"direct output","cost_usd":0.05,"num_turns":1,"is_error":false}'
`)

	result, err := e.Execute("prompt", Options{Stream: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "d-1", result.SessionID)
	assert.Equal(t, "direct output", result.Output)
	assert.Equal(t, 0.05, result.CostUSD)
}

func TestAlternateStreaming_PlainTextFallbackAndTurnCount(t *testing.T) {
	e := NewAlternateCodingExecutor(t.TempDir())
	e.cliCommand = writeFakeCLI(t, `
echo 'Working on it...'
echo '{"type":"assistant","content":"step one"}'
echo '{"type":"assistant","content":"step two"}'
echo 'done'
`)

	var events []StreamEvent
	result, err := e.Execute("prompt", Options{
		Stream:         boolPtr(true),
		StreamCallback: func(ev StreamEvent) { events = append(events, ev) },
	})
	require.NoError(t, err)

	require.Len(t, events, 4)
	assert.Equal(t, "text", events[0].EventType)
	assert.Equal(t, "Working on it...", events[0].Data["content"])
	assert.Equal(t, "assistant", events[1].EventType)
	assert.Equal(t, "text", events[3].EventType)
	assert.Equal(t, alternateCodingAgentType, events[0].Source)

	// num_turns counts assistant events only, and is documented approximate.
	assert.Equal(t, 2, result.NumTurns)
	assert.Empty(t, result.SessionID)
	assert.Zero(t, result.CostUSD)
	assert.Contains(t, result.Output, "Working on it...")
	assert.False(t, result.IsError)
}

func TestAlternateStreaming_NonZeroExitIsError(t *testing.T) {
	e := NewAlternateCodingExecutor(t.TempDir())
	e.cliCommand = writeFakeCLI(t, `
echo 'partial'
exit 1
`)

	result, err := e.Execute("prompt", Options{Stream: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Output, "partial")
}

func TestAlternateDirect_OutputFieldFallback(t *testing.T) {
	e := NewAlternateCodingExecutor(t.TempDir())
	e.cliCommand = writeFakeCLI(t, `
echo '{"output":"from the output field","num_turns":3}'
`)

	result, err := e.Execute("prompt", Options{Stream: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "from the output field", result.Output)
	assert.Equal(t, 3, result.NumTurns)
	assert.Zero(t, result.CostUSD)
}

func TestCheckAvailable_ReportsVersion(t *testing.T) {
	e := NewConversationalExecutor(t.TempDir())
	e.cliCommand = writeFakeCLI(t, `echo 'fake-agent 9.9.9'`)

	ok, version := e.CheckAvailable()
	assert.True(t, ok)
	assert.Equal(t, "fake-agent 9.9.9", version)
}

func TestCheckAvailable_MissingBinary(t *testing.T) {
	e := NewConversationalExecutor(t.TempDir())
	e.cliCommand = "definitely-not-a-real-agent-cli"

	ok, msg := e.CheckAvailable()
	assert.False(t, ok)
	assert.Contains(t, msg, "not found")
}
