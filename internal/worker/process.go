package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/agentfleet/fleet/internal/model"
)

// CLIRunner drives an external agentic-loop command (typically a
// Claude/Codex-style CLI) to completion for one task, grounded on the
// teacher's ClaudeProvider.Invoke + StreamHandler: its stdout is expected to
// be a newline-delimited JSON event stream, and its stderr is raw log lines.
// No output-format flags are added; the command is run with ExtraArgs only.
type CLIRunner struct {
	// Command is the executable to run. Defaults to "fleet-agent".
	Command string

	// ExtraArgs are the command's arguments, e.g. model selection.
	ExtraArgs []string
}

// NewCLIRunner creates a CLIRunner, defaulting an empty command to
// "fleet-agent" resolved via $PATH.
func NewCLIRunner(command string, extraArgs ...string) *CLIRunner {
	if command == "" {
		command = "fleet-agent"
	}
	return &CLIRunner{Command: command, ExtraArgs: extraArgs}
}

// streamEvent is one line of the agent's structured stdout stream.
type streamEvent struct {
	Type    string `json:"type"`
	Tool    string `json:"tool,omitempty"`
	Path    string `json:"path,omitempty"`
	Command string `json:"command,omitempty"`
	Text    string `json:"text,omitempty"`
	Result  string `json:"result,omitempty"`
}

// Run implements Runner: it launches Command with the task
// description on stdin, the target directory as the process cwd, and
// translates each stdout event line into an Activity while stderr lines
// become raw LogEntry records.
func (r *CLIRunner) Run(ctx context.Context, task *model.Task, targetDir string, emit func(model.Activity), log func(model.LogEntry)) (string, error) {
	cmd := exec.CommandContext(ctx, r.Command, r.ExtraArgs...)
	cmd.Dir = targetDir
	cmd.Stdin = strings.NewReader(task.Description)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", r.Command, err)
	}

	var result string
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stdoutPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			var ev streamEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				emit(model.Activity{Type: model.ActivityText, Summary: line})
				continue
			}
			act, isResult := translateEvent(ev)
			if isResult {
				result = ev.Result
				continue
			}
			emit(act)
		}
	}()

	go func() {
		scanner := bufio.NewScanner(stderrPipe)
		for scanner.Scan() {
			log(model.LogEntry{Line: scanner.Text()})
		}
	}()

	<-done
	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("%s: %w", r.Command, err)
	}
	return result, nil
}

// translateEvent maps one agent stream event into an Activity record. The
// "result" event type carries the final task result rather than an
// activity entry.
func translateEvent(ev streamEvent) (model.Activity, bool) {
	switch ev.Type {
	case "result":
		return model.Activity{}, true
	case "tool_call":
		summary := ev.Tool
		if ev.Path != "" {
			summary = fmt.Sprintf("%s %s", ev.Tool, ev.Path)
		}
		return model.Activity{Type: model.ActivityToolCall, Summary: summary}, false
	case "file_edit":
		return model.Activity{Type: model.ActivityFileEdit, Summary: ev.Path}, false
	case "file_create":
		return model.Activity{Type: model.ActivityFileCreat, Summary: ev.Path}, false
	case "bash":
		return model.Activity{Type: model.ActivityBash, Summary: ev.Command}, false
	case "error":
		return model.Activity{Type: model.ActivityError, Summary: ev.Text}, false
	case "thinking":
		return model.Activity{Type: model.ActivityThinking, Summary: ev.Text}, false
	default:
		return model.Activity{Type: model.ActivityText, Summary: ev.Text}, false
	}
}
