package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/fleet/internal/model"
)

func TestProcessAdapterSpawnSuccessMutatesTaskAndWorker(t *testing.T) {
	task := &model.Task{ID: "t1", Title: "do thing"}
	runner := &FakeRunner{
		Activity: []model.Activity{{Type: model.ActivityBash, Summary: "ls"}},
		Result:   "done",
	}
	adapter := NewProcessAdapter(runner)

	handle, err := adapter.Spawn(context.Background(), task, t.TempDir())
	require.NoError(t, err)

	select {
	case <-handle.Done:
	case <-time.After(time.Second):
		t.Fatal("worker did not complete in time")
	}

	assert.Equal(t, model.WorkerCompleted, handle.Worker.Status)
	assert.Equal(t, model.TaskCompleted, task.Status)
	assert.Equal(t, "done", task.Result)
	assert.Len(t, handle.Worker.Activity, 1)
	assert.NotNil(t, handle.Worker.CompletedAt)
	assert.Empty(t, adapter.ListActive())
}

func TestProcessAdapterSpawnFailureSetsTaskError(t *testing.T) {
	task := &model.Task{ID: "t1", Title: "do thing"}
	runner := &FakeRunner{Err: errors.New("boom")}
	adapter := NewProcessAdapter(runner)

	handle, err := adapter.Spawn(context.Background(), task, t.TempDir())
	require.NoError(t, err)
	<-handle.Done

	assert.Equal(t, model.WorkerFailed, handle.Worker.Status)
	assert.Equal(t, model.TaskFailed, task.Status)
	assert.Equal(t, "boom", task.Error)
}

func TestProcessAdapterCancelTerminatesAsFailed(t *testing.T) {
	task := &model.Task{ID: "t1", Title: "do thing"}
	gate := make(chan struct{})
	runner := &FakeRunner{Gate: gate}
	adapter := NewProcessAdapter(runner)

	handle, err := adapter.Spawn(context.Background(), task, t.TempDir())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(adapter.ListActive()) == 1
	}, time.Second, time.Millisecond)

	adapter.Cancel(handle.Worker.ID)

	select {
	case <-handle.Done:
	case <-time.After(time.Second):
		t.Fatal("cancelled worker did not complete in time")
	}

	assert.Equal(t, model.WorkerFailed, handle.Worker.Status)
	assert.Equal(t, model.TaskFailed, task.Status)
}

func TestFakeAdapterResolvesSynchronously(t *testing.T) {
	adapter := NewFakeAdapter(map[string]FakeResult{
		"ok":   {Result: "great"},
		"fail": {Err: errors.New("nope")},
	})

	okTask := &model.Task{ID: "a", Title: "ok"}
	handle, err := adapter.Spawn(context.Background(), okTask, "/tmp")
	require.NoError(t, err)
	assert.Equal(t, model.TaskCompleted, okTask.Status)
	assert.Equal(t, "great", okTask.Result)
	<-handle.Done

	failTask := &model.Task{ID: "b", Title: "fail"}
	_, err = adapter.Spawn(context.Background(), failTask, "/tmp")
	require.NoError(t, err)
	assert.Equal(t, model.TaskFailed, failTask.Status)
	assert.Equal(t, "nope", failTask.Error)
}
