package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// AlternateCodingExecutor wraps an auto-approving coding-agent CLI: a
// positional prompt argument, an approval-mode flag instead of
// permission prompts, no session resume, and no reported cost.
type AlternateCodingExecutor struct {
	WorkingDir     string
	DefaultTimeout time.Duration
	Model          string
	Stream         bool

	cliCommand          string
	installInstructions string
	cleanEnv            func() []string
}

const alternateCodingAgentType = "alternate-coding"

// approvalModeMap translates permission modes into the alternate CLI's
// approval-mode vocabulary.
var approvalModeMap = map[string]string{
	"plan":        "suggest",
	"acceptEdits": "auto-edit",
	"default":     "suggest",
}

// NewAlternateCodingExecutor constructs an AlternateCodingExecutor.
func NewAlternateCodingExecutor(workingDir string) *AlternateCodingExecutor {
	return &AlternateCodingExecutor{
		WorkingDir:           workingDir,
		DefaultTimeout:       DefaultTimeoutSeconds * time.Second,
		Stream:               true,
		cliCommand:           "codex",
		installInstructions:  "Install with: npm install -g @openai/codex",
		cleanEnv:             cleanSubAgentEnv,
	}
}

func (e *AlternateCodingExecutor) AgentType() string { return alternateCodingAgentType }

func (e *AlternateCodingExecutor) CheckAvailable() (bool, string) {
	return checkAvailable(e.cliCommand)
}

func (e *AlternateCodingExecutor) mapApprovalMode(permissionMode string, dangerousMode bool) string {
	if dangerousMode {
		return "full-auto"
	}
	if permissionMode == "" {
		return approvalModeMap["default"]
	}
	if mode, ok := approvalModeMap[permissionMode]; ok {
		return mode
	}
	return approvalModeMap["default"]
}

// BuildCommand constructs the alternate CLI's argv: a positional prompt,
// an --approval-mode flag, optional --model, and --quiet for
// non-interactive runs. ResumeSession and AllowedTools have no
// equivalent on this CLI and are silently ignored.
func (e *AlternateCodingExecutor) BuildCommand(prompt string, opts Options, streaming bool) []string {
	cmd := []string{e.cliCommand, prompt}
	cmd = append(cmd, "--approval-mode", e.mapApprovalMode(opts.PermissionMode, opts.DangerousMode))
	if e.Model != "" {
		cmd = append(cmd, "--model", e.Model)
	}
	cmd = append(cmd, "--quiet")
	return cmd
}

func (e *AlternateCodingExecutor) Execute(prompt string, opts Options) (ExecutionResult, error) {
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

func (e *AlternateCodingExecutor) executeDirect(prompt string, opts Options, workingDir string, timeout time.Duration) (ExecutionResult, error) {
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
		return timeoutResult(alternateCodingAgentType, timeout, elapsed, stdout), nil
	}
	if isNotFound(err) {
		return ExecutionResult{}, newNotFoundError(alternateCodingAgentType, e.cliCommand, e.installInstructions)
	}

	return e.parseDirect(stdout, elapsed, proc.ProcessState, err), nil
}

// parseDirect maps the CLI's JSON document to an ExecutionResult: cost
// is always 0 and the output falls back to the "output" field when
// "result" is absent.
func (e *AlternateCodingExecutor) parseDirect(stdout []byte, elapsed time.Duration, state *os.ProcessState, runErr error) ExecutionResult {
	exitCode := 0
	if state != nil {
		exitCode = state.ExitCode()
	}

	var data map[string]any
	if jsonErr := json.Unmarshal(stdout, &data); jsonErr == nil {
		output := stringField(data, "result")
		if output == "" {
			output = stringField(data, "output")
		}
		return ExecutionResult{
			SessionID:  stringField(data, "session_id"),
			Output:     output,
			CostUSD:    0.0,
			DurationMS: int64OrDefault(data, "duration_ms", elapsed.Milliseconds()),
			NumTurns:   intField(data, "num_turns"),
			IsError:    boolField(data, "is_error") || exitCode != 0,
			RawOutput:  string(stdout),
			AgentType:  alternateCodingAgentType,
		}
	}

	return ExecutionResult{
		SessionID:  "",
		Output:     strings.TrimSpace(string(stdout)),
		CostUSD:    0.0,
		DurationMS: elapsed.Milliseconds(),
		NumTurns:   0,
		IsError:    exitCode != 0 || runErr != nil,
		RawOutput:  string(stdout),
		AgentType:  alternateCodingAgentType,
	}
}

// executeStreaming reads JSONL output, falling back to a plain-text
// StreamEvent per line when a line does not parse as JSON — the alternate
// CLI interleaves human-readable progress lines with structured events.
// No terminal "result" event is guaranteed, so the ExecutionResult is
// always synthesized from collected output and the exit code.
func (e *AlternateCodingExecutor) executeStreaming(prompt string, opts Options, workingDir string, timeout time.Duration) (ExecutionResult, error) {
	cmd := e.BuildCommand(prompt, opts, true)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	proc := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
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
			return ExecutionResult{}, newNotFoundError(alternateCodingAgentType, e.cliCommand, e.installInstructions)
		}
		return ExecutionResult{}, fmt.Errorf("start %s: %w", e.cliCommand, err)
	}

	stderrGroup := drainStderr(stderr)

	start := time.Now()
	var assistantEvents int
	var collected strings.Builder
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		collected.WriteString(line)
		collected.WriteByte('\n')

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		evType := "text"
		var data map[string]any
		if jsonErr := json.Unmarshal([]byte(trimmed), &data); jsonErr == nil {
			if t, ok := data["type"].(string); ok {
				evType = t
			}
		} else {
			data = map[string]any{"content": trimmed}
		}

		if evType == "assistant" {
			assistantEvents++
		}
		if opts.StreamCallback != nil {
			callSafely(opts.StreamCallback, StreamEvent{EventType: evType, Data: data, Source: alternateCodingAgentType})
		}
	}

	waitErr := proc.Wait()
	elapsed := time.Since(start)
	_ = stderrGroup.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timeoutResult(alternateCodingAgentType, timeout, elapsed, nil), nil
	}

	exitCode := 0
	if proc.ProcessState != nil {
		exitCode = proc.ProcessState.ExitCode()
	}
	output := strings.TrimSpace(collected.String())
	return ExecutionResult{
		SessionID:  "", // this CLI does not provide session ids
		Output:     output,
		CostUSD:    0.0, // this CLI does not report cost in CLI output
		DurationMS: elapsed.Milliseconds(),
		NumTurns:   assistantEvents, // approximate: counts "assistant" events only
		IsError:    exitCode != 0 || waitErr != nil,
		RawOutput:  collected.String(),
		AgentType:  alternateCodingAgentType,
	}, nil
}
