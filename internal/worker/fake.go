package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentfleet/fleet/internal/model"
)

// FakeRunner is a scripted Runner for tests: it returns canned
// activity/result/error without spawning any process, and can block on a
// caller-controlled gate to let tests observe an in-flight worker before
// completing it (needed for cancellation and dead-end scenarios).
type FakeRunner struct {
	Activity []model.Activity
	Result   string
	Err      error

	// Gate, if non-nil, is closed by the test to release Run. Lets tests
	// assert on "worker is running" state before letting it finish.
	Gate <-chan struct{}
}

// Run implements Runner.
func (f *FakeRunner) Run(ctx context.Context, task *model.Task, targetDir string, emit func(model.Activity), log func(model.LogEntry)) (string, error) {
	for _, act := range f.Activity {
		emit(act)
	}
	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return f.Result, f.Err
}

// FakeAdapter is a synchronous, in-memory Adapter for scheduler tests: Spawn
// resolves immediately (no goroutine indirection), which keeps scheduler
// tests deterministic without sleeps.
type FakeAdapter struct {
	// Results, keyed by task title, supplies the outcome for that task's
	// worker. Missing titles default to an immediate success.
	Results map[string]FakeResult

	mu     sync.Mutex
	active map[string]struct{}
}

// FakeResult is the scripted outcome for one task's worker.
type FakeResult struct {
	Activity []model.Activity
	Result   string
	Err      error
}

// NewFakeAdapter creates a FakeAdapter with the given per-title results.
func NewFakeAdapter(results map[string]FakeResult) *FakeAdapter {
	return &FakeAdapter{Results: results, active: make(map[string]struct{})}
}

// Spawn implements Adapter; it resolves the worker synchronously before
// returning a Handle whose Done channel is already closed.
func (f *FakeAdapter) Spawn(ctx context.Context, task *model.Task, targetDir string) (*Handle, error) {
	res := f.Results[task.Title]

	w := &model.Worker{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		Status:    model.WorkerRunning,
		StartedAt: time.Now(),
		Activity:  append([]model.Activity(nil), res.Activity...),
	}

	f.mu.Lock()
	f.active[w.ID] = struct{}{}
	f.mu.Unlock()

	now := time.Now()
	if res.Err != nil {
		w.Status = model.WorkerFailed
		task.Status = model.TaskFailed
		task.Error = res.Err.Error()
	} else {
		w.Status = model.WorkerCompleted
		task.Status = model.TaskCompleted
		task.Result = res.Result
	}
	w.CompletedAt = &now
	task.CompletedAt = &now

	f.mu.Lock()
	delete(f.active, w.ID)
	f.mu.Unlock()

	done := make(chan struct{})
	close(done)
	return &Handle{Worker: w, Done: done}, nil
}

// Cancel implements Adapter; a no-op since FakeAdapter resolves synchronously.
func (f *FakeAdapter) Cancel(workerID string) {}

// CancelAll implements Adapter.
func (f *FakeAdapter) CancelAll() {}

// ListActive implements Adapter.
func (f *FakeAdapter) ListActive() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.active))
	for id := range f.active {
		ids = append(ids, id)
	}
	return ids
}
