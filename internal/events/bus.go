package events

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// recentCap bounds the ring of events kept for subscriber catch-up.
const recentCap = 1000

// catchUpCount is how many recent events a new subscriber is handed before
// live delivery begins (spec §4.1).
const catchUpCount = 50

// subscriberBuffer is the per-subscriber channel capacity; a subscriber that
// falls behind this far is dropped rather than blocking Emit.
const subscriberBuffer = 100

// Bus is an in-memory, thread-safe publish/subscribe event bus with a
// bounded ring of recent events for subscribe-time catch-up. Grounded on
// the teacher's daemon/job_events.go subscriber-channel pattern, collapsed
// from a per-job bus to one process-wide bus that the Run Manager shares
// across all Runs.
type Bus struct {
	mu     sync.Mutex
	recent []Event
	subs   map[int]*subscriber
	nextID int
	closed bool
}

type subscriber struct {
	ch     chan Event
	closed bool
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Emit stamps id/time, appends to the recent ring (evicting oldest beyond
// recentCap) and fans out to every current subscriber without blocking.
func (b *Bus) Emit(e Event) {
	e.ID = ulid.Make().String()
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.recent = append(b.recent, e)
	if len(b.recent) > recentCap {
		b.recent = b.recent[len(b.recent)-recentCap:]
	}

	for id, sub := range b.subs {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			// Subscriber fell behind; drop it rather than block Emit.
			sub.closed = true
			close(sub.ch)
			delete(b.subs, id)
		}
	}
}

// Subscribe registers a new subscriber, delivering up to the last
// catchUpCount recent events as a prelude before live events. Returns the
// channel to read from and an unsubscribe function, which is idempotent.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	sub := &subscriber{ch: ch}

	start := 0
	if len(b.recent) > catchUpCount {
		start = len(b.recent) - catchUpCount
	}
	for _, e := range b.recent[start:] {
		select {
		case ch <- e:
		default:
			// Buffer can't even hold the catch-up prelude; stop early.
		}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if cur, ok := b.subs[id]; ok && !cur.closed {
			cur.closed = true
			close(cur.ch)
			delete(b.subs, id)
		}
	}
	return ch, unsubscribe
}

// Handle registers handler as a subscriber via a background goroutine that
// drains its channel until unsubscribed, matching the callback-style
// Subscribe used throughout the teacher's daemon package. Returns an
// unsubscribe function.
func (b *Bus) Handle(handler Handler) func() {
	ch, unsubscribe := b.Subscribe()
	go func() {
		for e := range ch {
			handler(e)
		}
	}()
	return unsubscribe
}

// Close shuts down the bus: further Emit calls are no-ops and all
// subscriber channels are closed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subs {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		delete(b.subs, id)
	}
	return nil
}
