// Package reaper implements the Lifecycle Reaper (spec §2, §4.4): the
// startup and shutdown hooks that surround the Run Manager's lifetime.
// Startup reconciliation itself lives in the Run Store (every Run loaded
// already comes back with in-flight state rolled to a safe resting point,
// per spec §4.4); this package's startup duty is re-entering the pipeline
// for whatever that reconciliation left paused. Shutdown fires stop on
// every still-active Run and force-cancels any worker left standing once
// the grace period elapses. Grounded on the teacher's
// daemon.ResumeJobs/daemon.jobManagerImpl.StopAll pair: query-then-act over
// a collection, one outcome recorded per item, a best-effort backstop that
// never blocks forever.
package reaper

import (
	"fmt"
	"log"
	"time"

	"github.com/agentfleet/fleet/internal/model"
	"github.com/agentfleet/fleet/internal/runmanager"
	"github.com/agentfleet/fleet/internal/worker"
)

// Reaper owns the startup/shutdown hooks around one Run Manager.
type Reaper struct {
	manager *runmanager.Manager
	worker  worker.Adapter
}

// New creates a Reaper for manager, with worker as the cancellation
// backstop used during Shutdown.
func New(manager *runmanager.Manager, w worker.Adapter) *Reaper {
	return &Reaper{manager: manager, worker: w}
}

// Outcome records what happened resuming one previously-persisted Run.
type Outcome struct {
	RunID   string
	Resumed bool
	Err     error
}

// Startup loads every persisted Run (via the Manager's Bootstrap, which in
// turn reconciles in-flight state through the Run Store) and reports one
// Outcome per known Run. If Bootstrap fails to restart a Run, that error is
// returned and no outcomes are reported; Outcome.Err is not set here.
func (r *Reaper) Startup() ([]Outcome, error) {
	if err := r.manager.Bootstrap(); err != nil {
		return nil, fmt.Errorf("bootstrap runs: %w", err)
	}

	outcomes := make([]Outcome, 0, len(r.manager.List()))
	for _, run := range r.manager.List() {
		outcomes = append(outcomes, Outcome{RunID: run.ID, Resumed: run.Status.IsActive()})
	}
	return outcomes, nil
}

// Shutdown fires stop on every active Run, waits up to grace for each to
// settle, and unconditionally cancels every worker the adapter still
// thinks is active as a backstop against a pipeline goroutine that never
// observed the abort (spec §4.5 "cancelAll ... used by the Run Manager on
// shutdown").
func (r *Reaper) Shutdown(grace time.Duration) {
	ids := r.manager.ActiveRunIDs()
	for _, id := range ids {
		if err := r.manager.Stop(id); err != nil {
			log.Printf("reaper: stop run %s: %v", id, err)
		}
	}

	deadline := time.Now().Add(grace)
	for _, id := range ids {
		r.awaitSettled(id, time.Until(deadline))
	}

	r.worker.CancelAll()
}

// awaitSettled polls run until it leaves the active set or timeout elapses.
func (r *Reaper) awaitSettled(runID string, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	deadline := time.After(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			log.Printf("reaper: run %s did not settle within grace period", runID)
			return
		case <-ticker.C:
			run, err := r.manager.Get(runID)
			if err != nil || !run.Status.IsActive() {
				return
			}
		}
	}
}
