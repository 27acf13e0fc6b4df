package orchestrator

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger() (*Logger, *bytes.Buffer, *bytes.Buffer) {
	var text, jsonl bytes.Buffer
	return &Logger{text: &text, jsonl: nopCloser{&jsonl}}, &text, &jsonl
}

func TestLog_WritesBothSinks(t *testing.T) {
	l, text, jsonl := newBufferLogger()
	l.Log("phase_started", "planning", "starting", map[string]any{"attempt": 1})

	assert.Contains(t, text.String(), "[planning] phase_started: starting")

	var record map[string]any
	require.NoError(t, json.Unmarshal(jsonl.Bytes(), &record))
	assert.Equal(t, "phase_started", record["event"])
	assert.Equal(t, "planning", record["phase"])
	assert.Equal(t, "starting", record["message"])
	assert.NotEmpty(t, record["ts"])
	_, hasOutput := record["output"]
	assert.False(t, hasOutput)
}

func TestLogOutput_TruncatesLongOutput(t *testing.T) {
	l, text, jsonl := newBufferLogger()
	long := strings.Repeat("x", maxOutputChars+500)
	l.LogOutput("phase_failed", "test_execution", "phase failed", long, nil)

	var record map[string]any
	require.NoError(t, json.Unmarshal(jsonl.Bytes(), &record))
	output, ok := record["output"].(string)
	require.True(t, ok)
	assert.Len(t, output, maxOutputChars)

	assert.Contains(t, text.String(), "--- Output ---")
	assert.NotContains(t, text.String(), strings.Repeat("x", maxOutputChars+1))
}

func TestLogOutput_ShortOutputUnchanged(t *testing.T) {
	l, _, jsonl := newBufferLogger()
	l.LogOutput("phase_failed", "lint_check", "phase failed", "FAIL pkg/foo", nil)

	var record map[string]any
	require.NoError(t, json.Unmarshal(jsonl.Bytes(), &record))
	assert.Equal(t, "FAIL pkg/foo", record["output"])
}

func TestLog_NilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Log("event", "phase", "msg", nil)
		l.LogOutput("event", "phase", "msg", "output", nil)
	})
}
