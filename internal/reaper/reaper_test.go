package reaper

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/fleet/internal/events"
	"github.com/agentfleet/fleet/internal/model"
	"github.com/agentfleet/fleet/internal/planner"
	"github.com/agentfleet/fleet/internal/runmanager"
	"github.com/agentfleet/fleet/internal/store"
	"github.com/agentfleet/fleet/internal/worker"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "fleet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStartupWithNoPersistedRunsIsANoOp(t *testing.T) {
	st := newTestStore(t)
	m := runmanager.New(&planner.Fake{}, worker.NewFakeAdapter(nil), events.NewBus(), st)
	r := New(m, worker.NewFakeAdapter(nil))

	outcomes, err := r.Startup()
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestStartupResumesAPausedRunLeftMidFlight(t *testing.T) {
	st := newTestStore(t)

	// Simulate a prior process crashing mid-execution: a run persisted with
	// one completed task and one still in_progress.
	run := &model.Run{
		ID:         "run-1",
		Goal:       "goal",
		TargetDir:  t.TempDir(),
		Status:     model.RunExecuting,
		MaxWorkers: 1,
		CreatedAt:  time.Now(),
		Tasks: []*model.Task{
			{ID: "t1", Title: "T1", Status: model.TaskCompleted},
			{ID: "t2", Title: "T2", Status: model.TaskInProgress, DependsOn: []string{"t1"}},
		},
	}
	require.NoError(t, st.Save(run))

	fakePlanner := &planner.Fake{JudgeQueue: []planner.JudgeResult{{GoalComplete: true}}}
	fakeWorker := worker.NewFakeAdapter(map[string]worker.FakeResult{"T2": {Result: "ok"}})
	m := runmanager.New(fakePlanner, fakeWorker, events.NewBus(), st)
	r := New(m, fakeWorker)

	outcomes, err := r.Startup()
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Resumed)

	deadline := time.After(2 * time.Second)
	for {
		got, err := m.Get("run-1")
		require.NoError(t, err)
		if got.Status == model.RunCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("run never completed, last status %s", got.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestShutdownStopsActiveRunsAndCancelsWorkers(t *testing.T) {
	st := newTestStore(t)
	gate := make(chan struct{})
	fakePlanner := &planner.Fake{PlanResult: planner.PlanResult{Tasks: []planner.TaskSpec{{Title: "T1"}}}}
	fakeWorker := worker.NewProcessAdapter(&worker.FakeRunner{Result: "ok", Gate: gate})
	m := runmanager.New(fakePlanner, fakeWorker, events.NewBus(), st)
	r := New(m, fakeWorker)

	run, err := m.Create("goal", t.TempDir(), 1)
	require.NoError(t, err)
	require.NoError(t, m.Start(run.ID))
	time.Sleep(50 * time.Millisecond)

	close(gate)
	r.Shutdown(2 * time.Second)

	got, err := m.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStopped, got.Status)
}
