package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/fleet/internal/events"
	"github.com/agentfleet/fleet/internal/planner"
	"github.com/agentfleet/fleet/internal/reaper"
	"github.com/agentfleet/fleet/internal/runmanager"
	"github.com/agentfleet/fleet/internal/store"
	"github.com/agentfleet/fleet/internal/worker"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "fleet.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	p := &planner.Fake{PlanResult: planner.PlanResult{Analysis: "a"}}
	w := worker.NewFakeAdapter(nil)
	manager := runmanager.New(p, w, events.NewBus(), st)
	return New(manager, reaper.New(manager, w))
}

func run(t *testing.T, a *App, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	a.rootCmd.SetOut(&buf)
	a.rootCmd.SetErr(&buf)
	a.rootCmd.SetArgs(args)
	err := a.Execute(context.Background())
	return buf.String(), err
}

func TestCreateThenListShowsTheRun(t *testing.T) {
	a := newTestApp(t)
	dir := t.TempDir()

	out, err := run(t, a, "create", "build a thing", dir)
	require.NoError(t, err)
	runID := out[:len(out)-1]
	assert.NotEmpty(t, runID)

	out, err = run(t, a, "list")
	require.NoError(t, err)
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "build a thing")
}

func TestGetUnknownRunErrors(t *testing.T) {
	a := newTestApp(t)
	_, err := run(t, a, "get", "does-not-exist")
	assert.Error(t, err)
}

func TestStatusReportsAdapterKinds(t *testing.T) {
	a := newTestApp(t)
	out, err := run(t, a, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "planner:")
	assert.Contains(t, out, "worker:")
}

func TestShutdownWithNoActiveRunsReturnsImmediately(t *testing.T) {
	a := newTestApp(t)
	_, err := run(t, a, "shutdown", "--grace", "0")
	assert.NoError(t, err)
}
