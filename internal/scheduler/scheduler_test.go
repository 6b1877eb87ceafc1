package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/fleet/internal/events"
	"github.com/agentfleet/fleet/internal/model"
	"github.com/agentfleet/fleet/internal/planner"
	"github.com/agentfleet/fleet/internal/worker"
)

func newRun(maxWorkers int) *model.Run {
	return &model.Run{
		ID:         "run-1",
		Goal:       "test goal",
		TargetDir:  "/tmp",
		Status:     model.RunIdle,
		MaxWorkers: maxWorkers,
		CreatedAt:  time.Now(),
	}
}

func runPipeline(t *testing.T, run *model.Run, p planner.Planner, w worker.Adapter) *Handle {
	t.Helper()
	bus := events.NewBus()
	sched := New(p, w, bus, nil)
	h := NewHandle(run, NewAbortHandle(context.Background()))

	done := make(chan struct{})
	go func() {
		sched.Run(h)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not terminate in time")
	}
	return h
}

func TestS1TrivialSingleTask(t *testing.T) {
	fakePlanner := &planner.Fake{
		PlanResult: planner.PlanResult{
			Analysis: "A",
			Tasks:    []planner.TaskSpec{{Title: "T1"}},
		},
		JudgeQueue: []planner.JudgeResult{{GoalComplete: true}},
	}
	fakeWorker := worker.NewFakeAdapter(map[string]worker.FakeResult{
		"T1": {Result: "ok"},
	})

	run := newRun(1)
	runPipeline(t, run, fakePlanner, fakeWorker)

	assert.Equal(t, model.RunCompleted, run.Status)
	require.Len(t, run.Tasks, 1)
	assert.Equal(t, model.TaskCompleted, run.Tasks[0].Status)
	require.Len(t, run.Judgements, 1)
	assert.True(t, run.Judgements[0].GoalComplete)
}

func TestS2LinearDependency(t *testing.T) {
	fakePlanner := &planner.Fake{
		PlanResult: planner.PlanResult{
			Tasks: []planner.TaskSpec{
				{Title: "T1"},
				{Title: "T2", DependencyTitles: []string{"t1"}},
			},
		},
		JudgeQueue: []planner.JudgeResult{{}, {GoalComplete: true}},
	}
	fakeWorker := worker.NewFakeAdapter(map[string]worker.FakeResult{
		"T1": {Result: "ok"},
		"T2": {Result: "ok"},
	})

	run := newRun(2)
	runPipeline(t, run, fakePlanner, fakeWorker)

	assert.Equal(t, model.RunCompleted, run.Status)
	require.Len(t, run.Judgements, 2)
	assert.Equal(t, run.Tasks[0].ID, run.Judgements[0].TaskID)
	assert.Equal(t, run.Tasks[1].ID, run.Judgements[1].TaskID)
}

func TestS3JudgeSpawnsFollowUp(t *testing.T) {
	fakePlanner := &planner.Fake{
		PlanResult: planner.PlanResult{Tasks: []planner.TaskSpec{{Title: "T1"}}},
		JudgeQueue: []planner.JudgeResult{
			{NewTasks: []planner.TaskSpec{{Title: "T2"}}},
			{GoalComplete: true},
		},
	}
	fakeWorker := worker.NewFakeAdapter(map[string]worker.FakeResult{
		"T1": {Result: "ok"},
		"T2": {Result: "ok"},
	})

	run := newRun(1)
	runPipeline(t, run, fakePlanner, fakeWorker)

	assert.Equal(t, model.RunCompleted, run.Status)
	require.Len(t, run.Tasks, 2)
	require.Len(t, run.Judgements, 2)
	assert.Equal(t, run.Judgements[0].ID, run.Tasks[1].SpawnedBy)
}

// trackingRunner is a Runner that records how many concurrent invocations
// overlap, blocking each one on gate until the test releases it.
type trackingRunner struct {
	gate    <-chan struct{}
	current int32
	maxSeen int32
}

func (r *trackingRunner) Run(ctx context.Context, task *model.Task, targetDir string, emit func(model.Activity), log func(model.LogEntry)) (string, error) {
	n := atomic.AddInt32(&r.current, 1)
	defer atomic.AddInt32(&r.current, -1)
	for {
		old := atomic.LoadInt32(&r.maxSeen)
		if n <= old || atomic.CompareAndSwapInt32(&r.maxSeen, old, n) {
			break
		}
	}

	select {
	case <-r.gate:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "ok", nil
}

func TestS4ParallelCapNeverExceeded(t *testing.T) {
	gate := make(chan struct{})
	runner := &trackingRunner{gate: gate}
	adapter := worker.NewProcessAdapter(runner)

	fakePlanner := &planner.Fake{
		PlanResult: planner.PlanResult{Tasks: []planner.TaskSpec{
			{Title: "T1"}, {Title: "T2"}, {Title: "T3"}, {Title: "T4"},
		}},
		JudgeQueue: []planner.JudgeResult{{}, {}, {}, {GoalComplete: true}},
	}

	run := newRun(2)
	go func() {
		time.Sleep(100 * time.Millisecond)
		close(gate)
	}()
	runPipeline(t, run, fakePlanner, adapter)

	assert.Equal(t, model.RunCompleted, run.Status)
	assert.LessOrEqual(t, int(atomic.LoadInt32(&runner.maxSeen)), 2)
	for _, task := range run.Tasks {
		assert.Equal(t, model.TaskCompleted, task.Status)
	}
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

func TestS5FailedDependencyCancelsDependent(t *testing.T) {
	fakePlanner := &planner.Fake{
		PlanResult: planner.PlanResult{
			Tasks: []planner.TaskSpec{
				{Title: "T1"},
				{Title: "T2", DependencyTitles: []string{"T1"}},
			},
		},
		JudgeQueue: []planner.JudgeResult{{GoalComplete: false}},
	}
	fakeWorker := worker.NewFakeAdapter(map[string]worker.FakeResult{
		"T1": {Err: fakeErr("worker failed")},
	})

	run := newRun(2)
	runPipeline(t, run, fakePlanner, fakeWorker)

	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, model.TaskFailed, run.Tasks[0].Status)
	assert.Equal(t, model.TaskCancelled, run.Tasks[1].Status)
	assert.Equal(t, blockedReason, run.Tasks[1].Error)
}

func TestS6PauseAndResume(t *testing.T) {
	gate := make(chan struct{})
	fakePlanner := &planner.Fake{
		PlanResult: planner.PlanResult{Tasks: []planner.TaskSpec{
			{Title: "T1"}, {Title: "T2"}, {Title: "T3"},
		}},
		JudgeQueue: []planner.JudgeResult{{}, {}, {GoalComplete: true}},
	}
	runner := &worker.FakeRunner{Result: "ok", Gate: gate}
	adapter := worker.NewProcessAdapter(runner)

	run := newRun(3)
	bus := events.NewBus()
	sched := New(fakePlanner, adapter, bus, nil)
	h := NewHandle(run, NewAbortHandle(context.Background()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(h)
	}()

	time.Sleep(100 * time.Millisecond)
	h.Abort.Fire(CausePause)
	close(gate)
	wg.Wait()

	assert.Equal(t, model.RunPaused, run.Status)
	for _, task := range run.Tasks {
		assert.NotEqual(t, model.TaskInProgress, task.Status)
	}
}
