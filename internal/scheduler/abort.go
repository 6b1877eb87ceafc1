package scheduler

import "context"

// Cause distinguishes why a Run's abort handle fired, since the Scheduler
// lands in a different terminal status for each (spec §4.3 "Abort
// behavior").
type Cause int

const (
	// CauseNone means the handle has not fired yet.
	CauseNone Cause = iota
	// CausePause means resume should be possible later.
	CausePause
	// CauseStop means the run is being terminated for good (though still
	// resumable per the Run state machine's stopped -> paused edge).
	CauseStop
)

// AbortHandle is the cancellation primitive associated with one Run (spec
// §5 "Each Run owns one abort handle"). Firing it propagates through the
// context passed to every Worker Adapter call and is observed by the
// Scheduler at its suspension points.
type AbortHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
	cause  chan Cause
}

// NewAbortHandle creates an AbortHandle derived from parent.
func NewAbortHandle(parent context.Context) *AbortHandle {
	ctx, cancel := context.WithCancel(parent)
	return &AbortHandle{ctx: ctx, cancel: cancel, cause: make(chan Cause, 1)}
}

// Context is passed to Worker Adapter calls so cancellation propagates.
func (h *AbortHandle) Context() context.Context {
	return h.ctx
}

// Done reports the handle's firing, mirroring context.Context.Done.
func (h *AbortHandle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Fire cancels the context and records why, if it hasn't already fired.
// Second and later calls are no-ops, matching stop's required idempotence
// (spec §8).
func (h *AbortHandle) Fire(cause Cause) {
	select {
	case h.cause <- cause:
	default:
		return
	}
	h.cancel()
}

// Cause returns why the handle fired, or CauseNone if it hasn't.
func (h *AbortHandle) Cause() Cause {
	select {
	case c := <-h.cause:
		h.cause <- c
		return c
	default:
		return CauseNone
	}
}

// Fired reports whether Fire has been called.
func (h *AbortHandle) Fired() bool {
	select {
	case <-h.ctx.Done():
		return true
	default:
		return false
	}
}
