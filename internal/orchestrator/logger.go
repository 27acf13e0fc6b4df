package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Logger is a dual text+JSONL logger: one human-readable line to a text
// writer (normally os.Stderr), one JSON line appended to a run-scoped
// JSONL file, so a run is both watchable live and replayable afterward.
type Logger struct {
	text io.Writer
	jsonl io.WriteCloser
}

// NewLogger opens (creating if needed) jsonlPath for appending and wires
// text output to os.Stderr.
func NewLogger(jsonlPath string) (*Logger, error) {
	f, err := os.OpenFile(jsonlPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", jsonlPath, err)
	}
	return &Logger{text: os.Stderr, jsonl: f}, nil
}

// NewDiscardLogger is a no-op logger for callers (tests, dry-run) that
// don't want a log file on disk.
func NewDiscardLogger() *Logger {
	return &Logger{text: io.Discard, jsonl: nopCloser{io.Discard}}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// maxOutputChars caps the agent/runner output recorded per log entry so a
// verbose failure dump cannot balloon the log files.
const maxOutputChars = 10000

// Log writes one event: "[phase] event: message" to the text stream, and
// a JSON object {"ts","event","phase","data"} to the JSONL file. Logging
// never returns an error the caller must check — a write failure here
// should never fail the workflow.
func (l *Logger) Log(event, phase, message string, data map[string]any) {
	l.LogOutput(event, phase, message, "", data)
}

// LogOutput is Log with an attached raw output blob (agent or test-runner
// output), truncated to maxOutputChars in both sinks.
func (l *Logger) LogOutput(event, phase, message, output string, data map[string]any) {
	if l == nil {
		return
	}
	if len(output) > maxOutputChars {
		output = output[:maxOutputChars]
	}

	if phase != "" {
		fmt.Fprintf(l.text, "[%s] %s: %s\n", phase, event, message)
	} else {
		fmt.Fprintf(l.text, "%s: %s\n", event, message)
	}
	if output != "" {
		fmt.Fprintf(l.text, "--- Output ---\n%s\n--- End Output ---\n", output)
	}

	record := map[string]any{
		"ts":    time.Now().Format(time.RFC3339),
		"event": event,
		"phase": phase,
	}
	if message != "" {
		record["message"] = message
	}
	if output != "" {
		record["output"] = output
	}
	if data != nil {
		record["data"] = data
	}
	if encoded, err := json.Marshal(record); err == nil {
		fmt.Fprintln(l.jsonl, string(encoded))
	}
}

// Close releases the JSONL file handle.
func (l *Logger) Close() error {
	if l == nil || l.jsonl == nil {
		return nil
	}
	return l.jsonl.Close()
}
