package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ConversationalExecutor wraps a conversational, session-resuming agent
// CLI: prompts via "-p", JSON results carrying a session id and a
// per-turn USD cost, and a "--resume <id>" flag for session continuity.
type ConversationalExecutor struct {
	WorkingDir          string
	DefaultTimeout      time.Duration
	Model               string
	Stream              bool
	Verbose             bool
	Debug               string
	StallTimeout        time.Duration
	StartupTimeout      time.Duration
	WatchdogPollInterval time.Duration

	cliCommand          string
	installInstructions string
	cleanEnv            func() []string
}

const conversationalAgentType = "primary-conversational"

// NewConversationalExecutor constructs a ConversationalExecutor with the
// env-sanitizing helper wired in by default.
func NewConversationalExecutor(workingDir string) *ConversationalExecutor {
	return &ConversationalExecutor{
		WorkingDir:           workingDir,
		DefaultTimeout:       DefaultTimeoutSeconds * time.Second,
		Stream:               true,
		Verbose:              true,
		StallTimeout:         90 * time.Second,
		StartupTimeout:       60 * time.Second,
		WatchdogPollInterval: 1 * time.Second,
		cliCommand:           "claude",
		installInstructions:  "Install with: npm install -g @anthropic-ai/claude-code",
		cleanEnv:             cleanSubAgentEnv,
	}
}

func (e *ConversationalExecutor) AgentType() string { return conversationalAgentType }

func (e *ConversationalExecutor) CheckAvailable() (bool, string) {
	return checkAvailable(e.cliCommand)
}

// BuildCommand constructs the claude CLI argv. DangerousMode takes
// precedence over PermissionMode; --verbose and --debug only apply to
// streaming runs.
func (e *ConversationalExecutor) BuildCommand(prompt string, opts Options, streaming bool) []string {
	cmd := []string{e.cliCommand, "-p", prompt}

	if opts.ResumeSession != "" {
		cmd = append(cmd, "--resume", opts.ResumeSession)
	}

	if opts.DangerousMode {
		cmd = append(cmd, "--dangerously-skip-permissions")
	} else if opts.PermissionMode != "" {
		cmd = append(cmd, "--permission-mode", opts.PermissionMode)
	}

	if len(opts.AllowedTools) > 0 {
		cmd = append(cmd, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}

	if e.Model != "" {
		cmd = append(cmd, "--model", e.Model)
	}

	if streaming {
		cmd = append(cmd, "--output-format", "stream-json")
		if e.Verbose {
			cmd = append(cmd, "--verbose")
		}
		if e.Debug != "" {
			cmd = append(cmd, "--debug", e.Debug)
		}
	} else {
		cmd = append(cmd, "--output-format", "json")
	}

	maxTurns := opts.MaxTurns
	if maxTurns == 0 {
		maxTurns = DefaultMaxTurns
	}
	cmd = append(cmd, "--max-turns", fmt.Sprintf("%d", maxTurns))

	return cmd
}

func (e *ConversationalExecutor) Execute(prompt string, opts Options) (ExecutionResult, error) {
	useStream := e.Stream
	if opts.Stream != nil {
		useStream = *opts.Stream
	}
	timeout := e.DefaultTimeout
	if opts.TimeoutSeconds > 0 {
		timeout = time.Duration(opts.TimeoutSeconds) * time.Second
	}
	workingDir := e.WorkingDir
	if opts.WorkingDir != "" {
		workingDir = opts.WorkingDir
	}

	if useStream {
		return e.executeStreaming(prompt, opts, workingDir, timeout)
	}
	return e.executeDirect(prompt, opts, workingDir, timeout)
}

func (e *ConversationalExecutor) executeDirect(prompt string, opts Options, workingDir string, timeout time.Duration) (ExecutionResult, error) {
	cmd := e.BuildCommand(prompt, opts, false)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	proc := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	proc.Dir = workingDir
	proc.Env = e.cleanEnv()

	stdout, err := proc.Output()
	elapsed := time.Since(start)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timeoutResult(conversationalAgentType, timeout, elapsed, stdout), nil
	}
	if isNotFound(err) {
		return ExecutionResult{}, newNotFoundError(conversationalAgentType, e.cliCommand, e.installInstructions)
	}

	return parseDirectResult(conversationalAgentType, stdout, elapsed, proc.ProcessState, err), nil
}

func (e *ConversationalExecutor) executeStreaming(prompt string, opts Options, workingDir string, timeout time.Duration) (ExecutionResult, error) {
	cmd := e.BuildCommand(prompt, opts, true)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	stallCtx, stallCancel := context.WithCancelCause(ctx)
	defer stallCancel(nil)

	watchdog := &streamWatchdog{}
	start := time.Now()
	watchdog.lastActivityUnix.Store(start.UnixNano())
	startWatchdogs(stallCtx, stallCancel, watchdog, start, e.WatchdogPollInterval, e.StallTimeout, e.StartupTimeout)

	proc := exec.CommandContext(stallCtx, cmd[0], cmd[1:]...)
	proc.Dir = workingDir
	proc.Env = e.cleanEnv()

	stdout, err := proc.StdoutPipe()
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := proc.StderrPipe()
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := proc.Start(); err != nil {
		if isNotFound(err) {
			return ExecutionResult{}, newNotFoundError(conversationalAgentType, e.cliCommand, e.installInstructions)
		}
		return ExecutionResult{}, fmt.Errorf("start %s: %w", e.cliCommand, err)
	}

	stderrGroup := drainStderr(stderr)

	var eventCount int
	var finalResult map[string]any
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var data map[string]any
		if jsonErr := json.Unmarshal([]byte(line), &data); jsonErr != nil {
			continue
		}
		eventCount++
		watchdog.eventCount.Add(1)
		watchdog.lastActivityUnix.Store(time.Now().UnixNano())

		evType, _ := data["type"].(string)
		if opts.StreamCallback != nil {
			callSafely(opts.StreamCallback, StreamEvent{EventType: evType, Data: data, Source: conversationalAgentType})
		}
		if evType == "result" {
			finalResult = data
		}
	}

	waitErr := proc.Wait()
	elapsed := time.Since(start)
	_ = stderrGroup.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timeoutResult(conversationalAgentType, timeout, elapsed, nil), nil
	}
	if cause := context.Cause(stallCtx); cause != nil && stallCtx.Err() != nil && ctx.Err() == nil {
		return ExecutionResult{}, fmt.Errorf("%s stream stalled: %w", e.cliCommand, cause)
	}

	if finalResult != nil {
		return parseStreamResultEvent(conversationalAgentType, finalResult, elapsed, waitErr), nil
	}

	return ExecutionResult{
		SessionID:  "",
		Output:     "Streaming completed without result event",
		CostUSD:    0.0,
		DurationMS: elapsed.Milliseconds(),
		NumTurns:   eventCount,
		IsError:    waitErr != nil,
		RawOutput:  "",
		AgentType:  conversationalAgentType,
	}, nil
}

// parseStreamResultEvent builds an ExecutionResult from the terminal
// "result" stream event's fields.
func parseStreamResultEvent(agentType string, data map[string]any, elapsed time.Duration, waitErr error) ExecutionResult {
	raw, _ := json.Marshal(data)
	return ExecutionResult{
		SessionID:  stringField(data, "session_id"),
		Output:     stringField(data, "result"),
		CostUSD:    parseCost(data),
		DurationMS: int64OrDefault(data, "duration_ms", elapsed.Milliseconds()),
		NumTurns:   intField(data, "num_turns"),
		IsError:    boolField(data, "is_error") || waitErr != nil,
		RawOutput:  string(raw),
		AgentType:  agentType,
	}
}

func parseCost(data map[string]any) float64 {
	if v, ok := data["cost_usd"]; ok {
		return toFloat(v)
	}
	if v, ok := data["cost"]; ok {
		if m, ok := v.(map[string]any); ok {
			return toFloat(m["total_usd"])
		}
		return toFloat(v)
	}
	return 0.0
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0.0
	}
}

func stringField(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func intField(data map[string]any, key string) int {
	if v, ok := data[key].(float64); ok {
		return int(v)
	}
	return 0
}

func int64OrDefault(data map[string]any, key string, def int64) int64 {
	if v, ok := data[key].(float64); ok {
		return int64(v)
	}
	return def
}

func boolField(data map[string]any, key string) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return false
}

func parseDirectResult(agentType string, stdout []byte, elapsed time.Duration, state *os.ProcessState, runErr error) ExecutionResult {
	exitCode := 0
	if state != nil {
		exitCode = state.ExitCode()
	}

	var data map[string]any
	if jsonErr := json.Unmarshal(stdout, &data); jsonErr == nil {
		return ExecutionResult{
			SessionID:  stringField(data, "session_id"),
			Output:     stringField(data, "result"),
			CostUSD:    parseCost(data),
			DurationMS: int64OrDefault(data, "duration_ms", elapsed.Milliseconds()),
			NumTurns:   intField(data, "num_turns"),
			IsError:    boolField(data, "is_error") || exitCode != 0,
			RawOutput:  string(stdout),
			AgentType:  agentType,
		}
	}

	return ExecutionResult{
		SessionID:  "",
		Output:     string(stdout),
		CostUSD:    0.0,
		DurationMS: elapsed.Milliseconds(),
		NumTurns:   0,
		IsError:    exitCode != 0 || runErr != nil,
		RawOutput:  string(stdout),
		AgentType:  agentType,
	}
}

func timeoutResult(agentType string, timeout time.Duration, elapsed time.Duration, partial []byte) ExecutionResult {
	return ExecutionResult{
		SessionID:  "",
		Output:     fmt.Sprintf("Timeout after %s", timeout),
		CostUSD:    0.0,
		DurationMS: elapsed.Milliseconds(),
		NumTurns:   0,
		IsError:    true,
		RawOutput:  string(partial),
		AgentType:  agentType,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || isExecNotFoundMessage(err)
}

func isExecNotFoundMessage(err error) bool {
	if err == nil {
		return false
	}
	var pathErr *exec.Error
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr.Err, exec.ErrNotFound)
	}
	return false
}

func checkAvailable(cliCommand string) (bool, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, cliCommand, "--version").Output()
	if err == nil {
		return true, strings.TrimSpace(string(out))
	}
	if isNotFound(err) {
		return false, fmt.Sprintf("%s CLI not found", cliCommand)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, strings.TrimSpace(string(exitErr.Stderr))
	}
	return false, err.Error()
}

// drainStderr reads r to completion on a background goroutine, joined via
// errgroup.Group, so a chatty agent never blocks on a full stderr pipe.
// Lines are discarded; stderr is not captured in the ExecutionResult.
func drainStderr(r io.Reader) *errgroup.Group {
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(io.Discard, r)
		return err
	})
	return &g
}

func callSafely(cb func(StreamEvent), ev StreamEvent) {
	defer func() { _ = recover() }()
	cb(ev)
}

// streamWatchdog holds the shared atomic counters the watchdog goroutines
// and the stream read loop use to detect startup and stall timeouts.
type streamWatchdog struct {
	eventCount       atomic.Int64
	lastActivityUnix atomic.Int64
}

func startWatchdogs(ctx context.Context, cancel context.CancelCauseFunc, w *streamWatchdog, startedAt time.Time, pollInterval, stallTimeout, startupTimeout time.Duration) {
	if startupTimeout > 0 {
		interval := pollInterval
		if interval > 5*time.Second {
			interval = 5 * time.Second
		}
		go runStartupWatchdog(ctx, cancel, &w.eventCount, startedAt, interval, startupTimeout)
	}
	if stallTimeout > 0 {
		go runStallWatchdog(ctx, cancel, &w.lastActivityUnix, pollInterval, stallTimeout)
	}
}

func runStartupWatchdog(ctx context.Context, cancel context.CancelCauseFunc, eventCount *atomic.Int64, startedAt time.Time, pollInterval, startupTimeout time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if eventCount.Load() > 0 {
				return
			}
			if time.Since(startedAt) > startupTimeout {
				cancel(fmt.Errorf("stream startup timeout: no events received after %s", startupTimeout))
				return
			}
		}
	}
}

func runStallWatchdog(ctx context.Context, cancel context.CancelCauseFunc, lastActivityUnix *atomic.Int64, pollInterval, stallTimeout time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, lastActivityUnix.Load())
			if time.Since(last) > stallTimeout {
				cancel(fmt.Errorf("stall detected: no stream activity for %s", stallTimeout))
				return
			}
		}
	}
}
