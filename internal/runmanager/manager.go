// Package runmanager implements the Run Manager (spec §4.2): the public
// facade over create/start/stop/pause/resume/get/list, owning the map of
// live Scheduler handles and enforcing the Run state machine's legal
// transitions. Grounded on the teacher's daemon/job_manager.go: a
// mutex-guarded map of managed units, lazy goroutine-per-unit execution,
// and a shared event bus that every caller (CLI, TUI, tests) subscribes to.
package runmanager

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentfleet/fleet/internal/config"
	"github.com/agentfleet/fleet/internal/events"
	"github.com/agentfleet/fleet/internal/model"
	"github.com/agentfleet/fleet/internal/planner"
	"github.com/agentfleet/fleet/internal/scheduler"
	"github.com/agentfleet/fleet/internal/worker"
)

// Store is the subset of the Run Store the Run Manager depends on for
// startup reconciliation and per-mutation persistence.
type Store interface {
	Save(run *model.Run) error
	LoadAll() ([]*model.Run, error)
}

// entry bundles a Scheduler handle with whatever lets the Manager observe
// its pipeline goroutine finishing, so Stop/Pause callers can tell a fresh
// Start apart from one still winding down.
type entry struct {
	handle *scheduler.Handle
	done   chan struct{}
}

// Manager is the Run Manager. One Manager owns every Run in the process;
// the Scheduler itself is stateless and shared across all of them.
type Manager struct {
	sched  *scheduler.Scheduler
	store  Store
	bus    *events.Bus
	planner planner.Planner
	worker  worker.Adapter

	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates a Manager wired to the given Planner/Worker adapters, event
// bus and Run Store. Any scheduler.Option is forwarded to the Scheduler
// (e.g. scheduler.WithPollInterval from a loaded config.Config).
func New(p planner.Planner, w worker.Adapter, bus *events.Bus, store Store, opts ...scheduler.Option) *Manager {
	return &Manager{
		sched:   scheduler.New(p, w, bus, store, opts...),
		store:   store,
		bus:     bus,
		planner: p,
		worker:  w,
		entries: make(map[string]*entry),
	}
}

// HealthReport summarizes which adapters appear configured, for
// `fleetctl status`-style diagnostics (SPEC_FULL §12).
type HealthReport struct {
	PlannerKind string
	WorkerKind  string
	ActiveRuns  int
	KnownRuns   int
}

// Health reports which adapters the Manager is wired to and a coarse
// count of active vs. known runs. It does not probe the adapters (no
// network/process calls) — it only reports what was configured at New.
func (m *Manager) Health() HealthReport {
	return HealthReport{
		PlannerKind: adapterKind(m.planner),
		WorkerKind:  adapterKind(m.worker),
		ActiveRuns:  len(m.ActiveRunIDs()),
		KnownRuns:   len(m.List()),
	}
}

// adapterKind names the concrete type behind an adapter interface value,
// e.g. "*planner.CLIPlanner" or "*worker.FakeAdapter", so Health can report
// without the runmanager package importing every adapter's concrete type.
func adapterKind(v interface{}) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%T", v)
}

// Bootstrap loads every persisted Run from the Store (which has already
// reconciled in-flight state per spec §4.4), registers each as a handle,
// and restarts the pipeline for any that landed in paused with planned work
// (see hasResumableWork) — matching the
// Lifecycle Reaper's startup duty (spec §4.2 "Startup reconciliation").
func (m *Manager) Bootstrap() error {
	runs, err := m.store.LoadAll()
	if err != nil {
		return fmt.Errorf("load runs: %w", err)
	}

	m.mu.Lock()
	for _, run := range runs {
		h := scheduler.NewHandle(run, scheduler.NewAbortHandle(context.Background()))
		m.entries[run.ID] = &entry{handle: h}
	}
	m.mu.Unlock()

	for _, run := range runs {
		if run.Status == model.RunPaused && hasResumableWork(run) {
			if err := m.Start(run.ID); err != nil {
				return fmt.Errorf("resume run %s: %w", run.ID, err)
			}
		}
	}
	return nil
}

// hasResumableWork reports whether run has any plan output (tasks or an
// analysis). It does not tell a run reconciled to paused after a crash from
// one paused by user request; a paused run with neither tasks nor analysis
// is the only kind Bootstrap skips.
func hasResumableWork(run *model.Run) bool {
	return len(run.Tasks) > 0 || run.Analysis != ""
}

// Create validates goal and targetDir, mints a new idle Run, persists it and registers a
// handle, but does not start the pipeline (spec §4.2: create and start are
// distinct operations).
func (m *Manager) Create(goal, targetDir string, maxWorkers int) (*model.Run, error) {
	if goal == "" {
		return nil, fmt.Errorf("goal must not be empty")
	}
	info, err := os.Stat(targetDir)
	if err != nil {
		return nil, fmt.Errorf("target directory %s: %w", targetDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("target directory %s is not a directory", targetDir)
	}

	run := &model.Run{
		ID:         uuid.NewString(),
		Goal:       goal,
		TargetDir:  targetDir,
		Status:     model.RunIdle,
		MaxWorkers: config.ClampMaxWorkers(maxWorkers),
		CreatedAt:  time.Now(),
	}

	if err := m.store.Save(run); err != nil {
		return nil, fmt.Errorf("persist run: %w", err)
	}

	h := scheduler.NewHandle(run, scheduler.NewAbortHandle(context.Background()))
	m.mu.Lock()
	m.entries[run.ID] = &entry{handle: h}
	m.mu.Unlock()

	m.bus.Emit(events.New(events.RunCreated, run))
	return run, nil
}

// Start transitions a Run from idle or paused into planning/executing by launching the Scheduler's
// pipeline in a new goroutine. It is a no-op error if the Run is already
// active.
func (m *Manager) Start(runID string) error {
	e, err := m.lookup(runID)
	if err != nil {
		return err
	}

	e.handle.Mu.Lock()
	status := e.handle.Run.Status
	if status.IsActive() {
		e.handle.Mu.Unlock()
		return fmt.Errorf("run %s is already active (%s)", runID, status)
	}
	if !model.CanTransitionRun(status, model.RunPlanning) && status != model.RunPaused {
		e.handle.Mu.Unlock()
		return fmt.Errorf("run %s cannot start from status %s", runID, status)
	}
	e.handle.Mu.Unlock()

	// A fresh AbortHandle per start/resume, since the previous one (if any)
	// was fired to reach this non-active state and its context is spent.
	m.mu.Lock()
	e.handle.Abort = scheduler.NewAbortHandle(context.Background())
	e.done = make(chan struct{})
	done := e.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.sched.Run(e.handle)
	}()
	return nil
}

// Stop fires the Run's abort handle with CauseStop. Idempotent: firing an
// already-fired handle is a no-op (spec §8 "stop is idempotent").
func (m *Manager) Stop(runID string) error {
	e, err := m.lookup(runID)
	if err != nil {
		return err
	}
	e.handle.Abort.Fire(scheduler.CauseStop)
	return nil
}

// Pause fires the Run's abort handle with CausePause.
func (m *Manager) Pause(runID string) error {
	e, err := m.lookup(runID)
	if err != nil {
		return err
	}
	e.handle.Mu.RLock()
	status := e.handle.Run.Status
	e.handle.Mu.RUnlock()
	if !status.IsActive() {
		return fmt.Errorf("run %s is not active (%s), nothing to pause", runID, status)
	}
	e.handle.Abort.Fire(scheduler.CausePause)
	return nil
}

// Resume requires the Run to be paused or stopped (spec §4.2 "resume is
// legal from paused|stopped"). Resuming a stopped run first reopens it as
// paused with completedAt cleared, then restarts exactly like resuming a
// paused one.
func (m *Manager) Resume(runID string) error {
	e, err := m.lookup(runID)
	if err != nil {
		return err
	}
	e.handle.Mu.Lock()
	status := e.handle.Run.Status
	switch status {
	case model.RunStopped:
		e.handle.Run.Status = model.RunPaused
		e.handle.Run.CompletedAt = nil
	case model.RunPaused:
		// already in the right shape
	default:
		e.handle.Mu.Unlock()
		return fmt.Errorf("run %s cannot resume from status %s", runID, status)
	}
	e.handle.Mu.Unlock()
	return m.Start(runID)
}

// Get returns a defensive snapshot of the named Run.
func (m *Manager) Get(runID string) (*model.Run, error) {
	e, err := m.lookup(runID)
	if err != nil {
		return nil, err
	}
	return e.handle.Snapshot(), nil
}

// List returns a snapshot of every known Run, most recently created first.
func (m *Manager) List() []*model.Run {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	runs := make([]*model.Run, 0, len(entries))
	for _, e := range entries {
		runs = append(runs, e.handle.Snapshot())
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs
}

// Events exposes the shared event bus for subscribers (CLI watch, TUI).
func (m *Manager) Events() *events.Bus {
	return m.bus
}

// ActiveRunIDs returns the ids of every Run whose pipeline is currently
// driving it (planning/executing/judging), for the Lifecycle Reaper's
// shutdown sweep.
func (m *Manager) ActiveRunIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, e := range m.entries {
		e.handle.Mu.RLock()
		active := e.handle.Run.Status.IsActive()
		e.handle.Mu.RUnlock()
		if active {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *Manager) lookup(runID string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[runID]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return e, nil
}
