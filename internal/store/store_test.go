package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentfleet/fleet/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "fleet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadAllRoundTrip(t *testing.T) {
	s := newTestStore(t)

	run := &model.Run{
		ID:         "run-1",
		Goal:       "write hello",
		Status:     model.RunCompleted,
		MaxWorkers: 3,
		CreatedAt:  time.Now(),
		Tasks: []*model.Task{
			{ID: "t1", Title: "T1", Status: model.TaskCompleted, Result: "ok", CreatedAt: time.Now()},
		},
	}
	require.NoError(t, s.Save(run))

	loaded, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, run.ID, loaded[0].ID)
	require.Equal(t, run.Goal, loaded[0].Goal)
	require.Len(t, loaded[0].Tasks, 1)
	require.Equal(t, "ok", loaded[0].Tasks[0].Result)
}

func TestLoadAllReconcilesInFlightState(t *testing.T) {
	s := newTestStore(t)

	startedAt := time.Now()
	run := &model.Run{
		ID:        "run-2",
		Status:    model.RunExecuting,
		CreatedAt: time.Now(),
		Tasks: []*model.Task{
			{ID: "t1", Title: "T1", Status: model.TaskInProgress, StartedAt: &startedAt, CreatedAt: time.Now()},
		},
		Workers: []*model.Worker{
			{ID: "w1", TaskID: "t1", Status: model.WorkerRunning, StartedAt: time.Now()},
		},
	}
	require.NoError(t, s.Save(run))

	loaded, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	require.Equal(t, model.RunPaused, got.Status)
	require.Equal(t, model.TaskPending, got.Tasks[0].Status)
	require.Nil(t, got.Tasks[0].StartedAt)
	require.Equal(t, model.WorkerFailed, got.Workers[0].Status)
	require.NotNil(t, got.Workers[0].CompletedAt)
}

func TestSaveTruncatesWorkerHistory(t *testing.T) {
	s := newTestStore(t)

	w := &model.Worker{ID: "w1", TaskID: "t1", Status: model.WorkerCompleted, StartedAt: time.Now()}
	for i := 0; i < historyLimit+20; i++ {
		w.Logs = append(w.Logs, model.LogEntry{Line: "line"})
		w.Activity = append(w.Activity, model.Activity{Type: model.ActivityText, Summary: "x"})
	}
	run := &model.Run{ID: "run-3", Status: model.RunCompleted, CreatedAt: time.Now(), Workers: []*model.Worker{w}}

	require.NoError(t, s.Save(run))
	require.Len(t, w.Logs, historyLimit+20, "caller's record must not be mutated")

	loaded, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded[0].Workers[0].Logs, historyLimit)
	require.Len(t, loaded[0].Workers[0].Activity, historyLimit)
}

func TestMigrateLegacyCyclesIsIdempotent(t *testing.T) {
	legacy := []byte(`{
		"id": "run-4",
		"cycles": [
			{"plan": {"analysis": "first pass", "tasks": [{"title":"T1"}]}, "judgement": "looks good", "shouldContinue": true},
			{"plan": {"analysis": "", "tasks": []}, "judgement": "done", "shouldContinue": false}
		]
	}`)

	once, err := migrateLegacyCycles(legacy)
	require.NoError(t, err)

	run, err := decodeRun(once)
	require.NoError(t, err)
	require.Len(t, run.Tasks, 1)
	require.Equal(t, "first pass", run.Analysis)
	require.Len(t, run.Judgements, 2)
	require.False(t, run.Judgements[0].GoalComplete)
	require.True(t, run.Judgements[1].GoalComplete)

	twice, err := migrateLegacyCycles(once)
	require.NoError(t, err)
	require.JSONEq(t, string(once), string(twice))
}
