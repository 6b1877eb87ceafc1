package scheduler

import (
	"sync"

	"github.com/agentfleet/fleet/internal/model"
)

// judgeQueue is the FIFO of tasks awaiting judgement (spec §4.3
// "judgeQueue"). Safe for concurrent Push from many completion
// continuations and a single Pop consumer.
type judgeQueue struct {
	mu    sync.Mutex
	items []*model.Task
}

func newJudgeQueue() *judgeQueue {
	return &judgeQueue{}
}

// Push enqueues task.
func (q *judgeQueue) Push(task *model.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, task)
}

// Pop removes and returns the front task, or ok=false if empty.
func (q *judgeQueue) Pop() (*model.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	task := q.items[0]
	q.items = q.items[1:]
	return task, true
}

// Empty reports whether the queue currently holds no items.
func (q *judgeQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// judgingFlag is the re-entrancy guard for the judge queue processor (spec
// §4.3 "judging: boolean"): a second invoker that observes it already held
// returns immediately rather than running a concurrent drain.
type judgingFlag struct {
	mu     sync.Mutex
	active bool
}

// TryAcquire claims the flag, returning false if another goroutine already
// holds it.
func (f *judgingFlag) TryAcquire() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		return false
	}
	f.active = true
	return true
}

// Release clears the flag.
func (f *judgingFlag) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
}

// Active reports whether a drain is currently in progress.
func (f *judgingFlag) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}
