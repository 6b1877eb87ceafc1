// Package model defines the data types the orchestration engine operates
// on: Run, Task, Worker and Judgement, plus their lifecycle status enums.
package model

import "time"

// RunStatus is the lifecycle state of a Run (spec §4.2).
type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunPlanning  RunStatus = "planning"
	RunExecuting RunStatus = "executing"
	RunJudging   RunStatus = "judging"
	RunPaused    RunStatus = "paused"
	RunStopped   RunStatus = "stopped"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// IsTerminal reports whether the status is a final, non-resumable state.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed
}

// IsActive reports whether the scheduler pipeline is driving this run.
func (s RunStatus) IsActive() bool {
	return s == RunPlanning || s == RunExecuting || s == RunJudging
}

// runTransitions enumerates the legal Run state machine edges from §4.2.
// stop/resume are handled as special cases in the Run Manager since they
// apply from more than one source state; this table covers the rest.
var runTransitions = map[RunStatus][]RunStatus{
	RunIdle:      {RunPlanning},
	RunPlanning:  {RunExecuting, RunFailed, RunPaused, RunStopped},
	RunExecuting: {RunJudging, RunPaused, RunStopped, RunCompleted, RunFailed},
	RunJudging:   {RunExecuting, RunPaused, RunStopped, RunCompleted, RunFailed},
	RunPaused:    {RunPlanning, RunExecuting, RunStopped},
	RunStopped:   {RunPaused},
	RunCompleted: {},
	RunFailed:    {},
}

// CanTransitionRun reports whether from -> to is a legal Run transition.
func CanTransitionRun(from, to RunStatus) bool {
	for _, candidate := range runTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// TaskStatus is the lifecycle state of a Task (spec §3).
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether the task will never transition again.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// WorkerStatus is the lifecycle state of a Worker record (spec §3).
type WorkerStatus string

const (
	WorkerRunning   WorkerStatus = "running"
	WorkerCompleted WorkerStatus = "completed"
	WorkerFailed    WorkerStatus = "failed"
)

// ActivityType categorizes one structured entry in a Worker's activity log.
type ActivityType string

const (
	ActivityToolCall  ActivityType = "tool_call"
	ActivityFileEdit  ActivityType = "file_edit"
	ActivityFileCreat ActivityType = "file_create"
	ActivityBash      ActivityType = "bash"
	ActivityText      ActivityType = "text"
	ActivityError     ActivityType = "error"
	ActivityThinking  ActivityType = "thinking"
)

// Activity is one structured record of a worker's agentic-loop step.
type Activity struct {
	Type    ActivityType `json:"type"`
	Summary string       `json:"summary"`
	At      time.Time    `json:"at"`
}

// LogEntry is one line of a worker's raw log output.
type LogEntry struct {
	Line string    `json:"line"`
	At   time.Time `json:"at"`
}

// Task is a unit of work inside a Run, executed by one Worker.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Priority    int        `json:"priority"`
	DependsOn   []string   `json:"dependsOn"`
	WorkerID    string     `json:"workerId,omitempty"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	SpawnedBy   string     `json:"spawnedBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Worker is a record of one worker-agent execution.
type Worker struct {
	ID          string       `json:"id"`
	TaskID      string       `json:"taskId"`
	Status      WorkerStatus `json:"status"`
	Logs        []LogEntry   `json:"logs"`
	Activity    []Activity   `json:"activity"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

// Judgement is an immutable record of one judge invocation.
type Judgement struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"taskId"`
	Assessment   string    `json:"assessment"`
	NewTaskIDs   []string  `json:"newTaskIds"`
	GoalComplete bool      `json:"goalComplete"`
	At           time.Time `json:"at"`
}

// Run is the top-level unit the engine orchestrates.
type Run struct {
	ID          string      `json:"id"`
	Goal        string      `json:"goal"`
	TargetDir   string      `json:"targetDir"`
	Status      RunStatus   `json:"status"`
	Analysis    string      `json:"analysis"`
	Tasks       []*Task     `json:"tasks"`
	Judgements  []*Judgement `json:"judgements"`
	Workers     []*Worker   `json:"workers"`
	MaxWorkers  int         `json:"maxWorkers"`
	CreatedAt   time.Time   `json:"createdAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// TaskByID returns the task with the given id, or nil.
func (r *Run) TaskByID(id string) *Task {
	for _, t := range r.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// WorkerByID returns the worker with the given id, or nil.
func (r *Run) WorkerByID(id string) *Worker {
	for _, w := range r.Workers {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// Clone returns a deep copy of the Run so callers can read state without
// racing the Scheduler, which mutates the canonical Run freely on its own
// goroutine (see spec §5 "Shared-resource policy").
func (r *Run) Clone() *Run {
	cp := *r
	cp.Tasks = make([]*Task, len(r.Tasks))
	for i, t := range r.Tasks {
		tc := *t
		tc.DependsOn = append([]string(nil), t.DependsOn...)
		cp.Tasks[i] = &tc
	}
	cp.Judgements = make([]*Judgement, len(r.Judgements))
	for i, j := range r.Judgements {
		jc := *j
		jc.NewTaskIDs = append([]string(nil), j.NewTaskIDs...)
		cp.Judgements[i] = &jc
	}
	cp.Workers = make([]*Worker, len(r.Workers))
	for i, w := range r.Workers {
		wc := *w
		wc.Logs = append([]LogEntry(nil), w.Logs...)
		wc.Activity = append([]Activity(nil), w.Activity...)
		cp.Workers[i] = &wc
	}
	return &cp
}

// TruncateHistory bounds each worker's logs/activity to the most recent n
// entries, matching the Run Store's on-write truncation (spec §4.4).
func (r *Run) TruncateHistory(n int) {
	for _, w := range r.Workers {
		if len(w.Logs) > n {
			w.Logs = w.Logs[len(w.Logs)-n:]
		}
		if len(w.Activity) > n {
			w.Activity = w.Activity[len(w.Activity)-n:]
		}
	}
}
