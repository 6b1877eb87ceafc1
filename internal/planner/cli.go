package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/agentfleet/fleet/internal/activity"
	"github.com/agentfleet/fleet/internal/model"
)

// CLIPlanner invokes an external planning-service command that reads a JSON
// request on stdin and writes a JSON response on stdout. Grounded on the
// teacher's provider.ClaudeProvider.Invoke: exec.CommandContext, output
// captured rather than streamed since the planner's response must be parsed
// as data. The target directory travels in the JSON request; the command
// runs in the calling process's working directory.
type CLIPlanner struct {
	// PlanCommand is the executable invoked for Plan. Defaults to "fleet-plan".
	PlanCommand string

	// JudgeCommand is the executable invoked for Judge. Defaults to "fleet-judge".
	JudgeCommand string
}

// NewCLI creates a CLIPlanner, defaulting empty commands to fleet-plan /
// fleet-judge resolved via $PATH.
func NewCLI(planCommand, judgeCommand string) *CLIPlanner {
	if planCommand == "" {
		planCommand = "fleet-plan"
	}
	if judgeCommand == "" {
		judgeCommand = "fleet-judge"
	}
	return &CLIPlanner{PlanCommand: planCommand, JudgeCommand: judgeCommand}
}

type planRequest struct {
	Goal      string `json:"goal"`
	TargetDir string `json:"targetDir"`
	Analysis  string `json:"analysis,omitempty"`
}

type taskSpecWire struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Priority         int      `json:"priority"`
	DependencyTitles []string `json:"dependencyTitles"`
}

type planResponse struct {
	Analysis string         `json:"analysis"`
	Tasks    []taskSpecWire `json:"tasks"`
}

// Plan shells out to PlanCommand with the Run's goal and target directory
// on stdin, parsing a PlanResult from its stdout.
func (p *CLIPlanner) Plan(ctx context.Context, run *model.Run) (PlanResult, error) {
	req := planRequest{Goal: run.Goal, TargetDir: run.TargetDir, Analysis: run.Analysis}
	var resp planResponse
	if err := p.invoke(ctx, p.PlanCommand, req, &resp); err != nil {
		return PlanResult{}, fmt.Errorf("plan invocation failed: %w", err)
	}
	return PlanResult{Analysis: resp.Analysis, Tasks: fromWire(resp.Tasks)}, nil
}

type judgeRequest struct {
	Goal       string            `json:"goal"`
	TargetDir  string            `json:"targetDir"`
	Task       judgeRequestTask  `json:"task"`
}

type judgeRequestTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Result      string `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
	Activity    string `json:"activity,omitempty"`
}

type judgeResponse struct {
	Assessment   string         `json:"assessment"`
	GoalComplete bool           `json:"goalComplete"`
	NewTasks     []taskSpecWire `json:"newTasks"`
}

// Judge shells out to JudgeCommand with the completed task's detail on
// stdin, parsing a JudgeResult from its stdout.
func (p *CLIPlanner) Judge(ctx context.Context, run *model.Run, task *model.Task) (JudgeResult, error) {
	req := judgeRequest{
		Goal:      run.Goal,
		TargetDir: run.TargetDir,
		Task: judgeRequestTask{
			Title:       task.Title,
			Description: task.Description,
			Status:      string(task.Status),
			Result:      task.Result,
			Error:       task.Error,
			Activity:    activity.Summarize(task, run.WorkerByID(task.WorkerID)),
		},
	}
	var resp judgeResponse
	if err := p.invoke(ctx, p.JudgeCommand, req, &resp); err != nil {
		return JudgeResult{}, fmt.Errorf("judge invocation failed: %w", err)
	}
	return JudgeResult{
		Assessment:   resp.Assessment,
		GoalComplete: resp.GoalComplete,
		NewTasks:     fromWire(resp.NewTasks),
	}, nil
}

func (p *CLIPlanner) invoke(ctx context.Context, command string, req any, resp any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	cmd := exec.CommandContext(ctx, command)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", command, err, stderr.String())
	}
	if err := json.Unmarshal(stdout.Bytes(), resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func fromWire(tasks []taskSpecWire) []TaskSpec {
	out := make([]TaskSpec, len(tasks))
	for i, t := range tasks {
		out[i] = TaskSpec{
			Title:            t.Title,
			Description:      t.Description,
			Priority:         t.Priority,
			DependencyTitles: t.DependencyTitles,
		}
	}
	return out
}
