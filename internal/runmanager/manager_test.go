package runmanager

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/fleet/internal/events"
	"github.com/agentfleet/fleet/internal/model"
	"github.com/agentfleet/fleet/internal/planner"
	"github.com/agentfleet/fleet/internal/store"
	"github.com/agentfleet/fleet/internal/worker"
)

func newTestManager(t *testing.T, p planner.Planner, w worker.Adapter) *Manager {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "fleet.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return New(p, w, events.NewBus(), st)
}

func waitForStatus(t *testing.T, m *Manager, runID string, want model.RunStatus) *model.Run {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		run, err := m.Get(runID)
		require.NoError(t, err)
		if run.Status == want {
			return run
		}
		select {
		case <-deadline:
			t.Fatalf("run %s never reached status %s (last seen %s)", runID, want, run.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestCreateValidatesGoalAndTargetDir(t *testing.T) {
	m := newTestManager(t, &planner.Fake{}, worker.NewFakeAdapter(nil))

	_, err := m.Create("", t.TempDir(), 2)
	assert.Error(t, err)

	_, err = m.Create("goal", filepath.Join(t.TempDir(), "missing"), 2)
	assert.Error(t, err)
}

func TestCreateClampsMaxWorkers(t *testing.T) {
	m := newTestManager(t, &planner.Fake{}, worker.NewFakeAdapter(nil))

	run, err := m.Create("goal", t.TempDir(), 99)
	require.NoError(t, err)
	assert.Equal(t, 10, run.MaxWorkers)
	assert.Equal(t, model.RunIdle, run.Status)
}

func TestStartRunsToCompletion(t *testing.T) {
	fakePlanner := &planner.Fake{
		PlanResult: planner.PlanResult{Tasks: []planner.TaskSpec{{Title: "T1"}}},
		JudgeQueue: []planner.JudgeResult{{GoalComplete: true}},
	}
	fakeWorker := worker.NewFakeAdapter(map[string]worker.FakeResult{"T1": {Result: "ok"}})
	m := newTestManager(t, fakePlanner, fakeWorker)

	run, err := m.Create("goal", t.TempDir(), 1)
	require.NoError(t, err)

	require.NoError(t, m.Start(run.ID))
	got := waitForStatus(t, m, run.ID, model.RunCompleted)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, model.TaskCompleted, got.Tasks[0].Status)
}

func TestStartTwiceWhileActiveFails(t *testing.T) {
	gate := make(chan struct{})
	fakePlanner := &planner.Fake{PlanResult: planner.PlanResult{Tasks: []planner.TaskSpec{{Title: "T1"}}}}
	adapter := worker.NewProcessAdapter(&worker.FakeRunner{Result: "ok", Gate: gate})
	m := newTestManager(t, fakePlanner, adapter)

	run, err := m.Create("goal", t.TempDir(), 1)
	require.NoError(t, err)
	require.NoError(t, m.Start(run.ID))

	time.Sleep(50 * time.Millisecond)
	err = m.Start(run.ID)
	assert.Error(t, err)

	close(gate)
	waitForStatus(t, m, run.ID, model.RunCompleted)
}

func TestPauseThenResume(t *testing.T) {
	gate := make(chan struct{})
	fakePlanner := &planner.Fake{
		PlanResult: planner.PlanResult{Tasks: []planner.TaskSpec{{Title: "T1"}, {Title: "T2"}}},
		JudgeQueue: []planner.JudgeResult{{}, {GoalComplete: true}},
	}
	adapter := worker.NewProcessAdapter(&worker.FakeRunner{Result: "ok", Gate: gate})
	m := newTestManager(t, fakePlanner, adapter)

	run, err := m.Create("goal", t.TempDir(), 1)
	require.NoError(t, err)
	require.NoError(t, m.Start(run.ID))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, m.Pause(run.ID))
	close(gate)
	waitForStatus(t, m, run.ID, model.RunPaused)

	require.NoError(t, m.Resume(run.ID))
	waitForStatus(t, m, run.ID, model.RunCompleted)
}

func TestStopIsIdempotent(t *testing.T) {
	gate := make(chan struct{})
	fakePlanner := &planner.Fake{PlanResult: planner.PlanResult{Tasks: []planner.TaskSpec{{Title: "T1"}}}}
	adapter := worker.NewProcessAdapter(&worker.FakeRunner{Result: "ok", Gate: gate})
	m := newTestManager(t, fakePlanner, adapter)

	run, err := m.Create("goal", t.TempDir(), 1)
	require.NoError(t, err)
	require.NoError(t, m.Start(run.ID))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, m.Stop(run.ID))
	require.NoError(t, m.Stop(run.ID))
	close(gate)
	waitForStatus(t, m, run.ID, model.RunStopped)
}

func TestListOrdersByCreatedAtDescending(t *testing.T) {
	m := newTestManager(t, &planner.Fake{}, worker.NewFakeAdapter(nil))

	first, err := m.Create("first", t.TempDir(), 1)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := m.Create("second", t.TempDir(), 1)
	require.NoError(t, err)

	runs := m.List()
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
}
