// Package worker defines the Worker Adapter: the core's interface onto the
// external agentic-loop capability that actually executes a Task (spec
// §4.5). The core only launches, cancels, and awaits it; how the agent
// decides what tool calls to make is entirely the adapter implementation's
// concern.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentfleet/fleet/internal/model"
)

// Handle is returned by Spawn; Done resolves once the adapter has finished
// mutating the Worker and Task records (spec §4.5: "the future resolves
// after those mutations are visible").
type Handle struct {
	Worker *model.Worker
	Done   <-chan struct{}
}

// Adapter is the Worker Adapter contract.
type Adapter interface {
	// Spawn launches a worker-agent execution for task in targetDir. The
	// returned Worker record is already appended to by the caller; mutation
	// of its Status/CompletedAt and of task's Status/Result/Error/CompletedAt
	// happens asynchronously until Done closes.
	Spawn(ctx context.Context, task *model.Task, targetDir string) (*Handle, error)

	// Cancel stops the worker identified by workerID promptly; it will
	// terminate as failed.
	Cancel(workerID string)

	// CancelAll cancels every currently active worker.
	CancelAll()

	// ListActive returns the worker ids currently running.
	ListActive() []string
}

// Runner is the minimal capability a concrete Adapter delegates to: given a
// task and a working directory, run the agentic loop to completion,
// emitting activity as it goes, and return a result or error. This mirrors
// the teacher's provider.Provider.Invoke shape, generalized from "stream
// text to stdout/stderr" to "emit structured Activity/LogEntry records".
type Runner interface {
	Run(ctx context.Context, task *model.Task, targetDir string, emit func(model.Activity), log func(model.LogEntry)) (result string, err error)
}

// ProcessAdapter is the concrete, process-based Adapter: each Spawn starts
// a goroutine that drives a Runner (typically an external CLI) to
// completion and then mutates the Worker/Task records. Grounded on the
// teacher's worker.Pool: a map of in-flight work plus a mutex, and
// per-worker cancellation via context.
type ProcessAdapter struct {
	runner Runner

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewProcessAdapter creates an Adapter backed by runner.
func NewProcessAdapter(runner Runner) *ProcessAdapter {
	return &ProcessAdapter{
		runner:  runner,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Spawn implements Adapter.
func (a *ProcessAdapter) Spawn(ctx context.Context, task *model.Task, targetDir string) (*Handle, error) {
	workerCtx, cancel := context.WithCancel(ctx)

	w := &model.Worker{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		Status:    model.WorkerRunning,
		StartedAt: time.Now(),
	}

	a.mu.Lock()
	a.cancels[w.ID] = cancel
	a.mu.Unlock()

	done := make(chan struct{})

	var mu sync.Mutex
	emit := func(act model.Activity) {
		mu.Lock()
		defer mu.Unlock()
		act.At = time.Now()
		w.Activity = append(w.Activity, act)
	}
	logLine := func(entry model.LogEntry) {
		mu.Lock()
		defer mu.Unlock()
		entry.At = time.Now()
		w.Logs = append(w.Logs, entry)
	}

	go func() {
		defer close(done)
		defer func() {
			a.mu.Lock()
			delete(a.cancels, w.ID)
			a.mu.Unlock()
		}()

		result, err := a.runner.Run(workerCtx, task, targetDir, emit, logLine)

		now := time.Now()
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			w.Status = model.WorkerFailed
			task.Status = model.TaskFailed
			task.Error = err.Error()
		} else {
			w.Status = model.WorkerCompleted
			task.Status = model.TaskCompleted
			task.Result = result
		}
		w.CompletedAt = &now
		task.CompletedAt = &now
	}()

	return &Handle{Worker: w, Done: done}, nil
}

// Cancel implements Adapter.
func (a *ProcessAdapter) Cancel(workerID string) {
	a.mu.Lock()
	cancel, ok := a.cancels[workerID]
	a.mu.Unlock()
	if ok {
		cancel()
	}
}

// CancelAll implements Adapter.
func (a *ProcessAdapter) CancelAll() {
	a.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(a.cancels))
	for _, c := range a.cancels {
		cancels = append(cancels, c)
	}
	a.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// ListActive implements Adapter.
func (a *ProcessAdapter) ListActive() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.cancels))
	for id := range a.cancels {
		ids = append(ids, id)
	}
	return ids
}
