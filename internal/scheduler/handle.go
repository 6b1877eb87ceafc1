package scheduler

import (
	"sync"

	"github.com/agentfleet/fleet/internal/model"
)

// Handle bundles a Run with the mutual-exclusion guard and abort handle the
// Scheduler and Run Manager cooperatively use to mutate it (spec §5
// "Shared-resource policy"). The Scheduler holds the lock briefly on every
// mutation; external callers (stop, pause, get, list) do the same.
type Handle struct {
	Run   *model.Run
	Mu    *sync.RWMutex
	Abort *AbortHandle
}

// NewHandle wraps run with a fresh mutex and abort handle.
func NewHandle(run *model.Run, abort *AbortHandle) *Handle {
	return &Handle{Run: run, Mu: &sync.RWMutex{}, Abort: abort}
}

// Snapshot returns a defensive copy of the Run for readers (spec §5
// "Readers obtain a defensive copy").
func (h *Handle) Snapshot() *model.Run {
	h.Mu.RLock()
	defer h.Mu.RUnlock()
	return h.Run.Clone()
}
