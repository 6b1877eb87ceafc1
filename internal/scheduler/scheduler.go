// Package scheduler implements the Pipeline (spec §4.3): the per-Run
// execution loop that selects ready tasks, enforces the worker parallelism
// cap, drives the serialized judge queue, detects quiescence, and honors
// abort.
package scheduler

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentfleet/fleet/internal/events"
	"github.com/agentfleet/fleet/internal/model"
	"github.com/agentfleet/fleet/internal/planner"
	"github.com/agentfleet/fleet/internal/worker"
)

// Persister is the subset of the Run Store the Scheduler depends on.
// Defined locally so this package never imports store directly, matching
// the adapter-style decoupling used for Planner/Worker (spec §4.5).
type Persister interface {
	Save(run *model.Run) error
}

const (
	// pollInterval is the sleep when nothing is running but pending tasks
	// exist, giving a just-finished judge's new tasks a chance to surface
	// (spec §4.3 step 7, bounded "≤1 s").
	pollInterval = 500 * time.Millisecond

	// judgeDrainPoll is the finalization wait granularity for the judge
	// queue to empty (spec §4.3 "Finalization", bounded "≤500 ms").
	judgeDrainPoll = 100 * time.Millisecond

	// defaultNewTaskPriority is assigned to judge-spawned tasks that don't
	// specify one (spec §4.3 "priority (default 5)").
	defaultNewTaskPriority = 5

	blockedReason = "Blocked by failed dependencies"
)

// Scheduler drives one Run at a time through Run; it holds no per-run
// state of its own and may be shared and reused across Runs.
type Scheduler struct {
	planner planner.Planner
	worker  worker.Adapter
	bus     *events.Bus
	store   Persister
	poll    time.Duration
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithPollInterval overrides the "nothing running, tasks pending" sleep
// bound (spec §4.3 step 7, "≤1 s"). A non-positive value is ignored and the
// package default (pollInterval) is kept.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

// New creates a Scheduler wired to the given adapters.
func New(p planner.Planner, w worker.Adapter, bus *events.Bus, store Persister, opts ...Option) *Scheduler {
	s := &Scheduler{planner: p, worker: w, bus: bus, store: store, poll: pollInterval}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// inFlightEntry tracks one spawned worker's completion signal alongside
// the task it belongs to, so the main loop can reap it once done fires.
type inFlightEntry struct {
	taskID string
	handle *worker.Handle
}

// Run executes the full pipeline for h.Run until it reaches a terminal or
// paused/stopped state. It blocks until the Run is no longer active.
func (s *Scheduler) Run(h *Handle) {
	run := h.Run

	h.Mu.RLock()
	hasPending := hasPendingTasks(run)
	h.Mu.RUnlock()

	if !hasPending {
		if !s.plan(h) {
			return
		}
	} else {
		log.Printf("run %s: resuming with %d pending task(s), skipping planning", run.ID, countPending(run))
	}

	s.executionLoop(h)
}

// plan runs the planning phase (spec §4.3 "Planning phase"). Returns false
// if the run failed during planning, in which case Run must not proceed to
// the execution loop.
func (s *Scheduler) plan(h *Handle) bool {
	run := h.Run

	h.Mu.Lock()
	run.Status = model.RunPlanning
	h.Mu.Unlock()
	s.emitRunUpdated(run)
	s.persist(h)

	result, err := s.planner.Plan(h.Abort.Context(), run)
	if err != nil {
		h.Mu.Lock()
		run.Status = model.RunFailed
		run.Error = err.Error()
		now := time.Now()
		run.CompletedAt = &now
		h.Mu.Unlock()
		s.persist(h)
		s.bus.Emit(events.New(events.RunFailed, run))
		return false
	}

	h.Mu.Lock()
	run.Analysis = result.Analysis
	run.Tasks = specsToTasks(result.Tasks, "", nil)
	h.Mu.Unlock()
	s.persist(h)
	s.emitRunUpdated(run)
	return true
}

// executionLoop is the Scheduler's main body (spec §4.3 "Execution loop").
func (s *Scheduler) executionLoop(h *Handle) {
	run := h.Run

	h.Mu.Lock()
	run.Status = model.RunExecuting
	h.Mu.Unlock()
	s.emitRunUpdated(run)

	inFlight := make(map[string]*inFlightEntry)
	queue := newJudgeQueue()
	judging := &judgingFlag{}
	woke := make(chan struct{}, 1)

	for {
		if h.Abort.Fired() {
			break
		}

		h.Mu.RLock()
		terminal := run.Status.IsTerminal()
		h.Mu.RUnlock()
		if terminal {
			break
		}

		s.dispatchReady(h, inFlight, queue, judging, woke)

		blocked := s.detectDeadEnd(h, inFlight)
		if blocked {
			h.Mu.RLock()
			quiescent := !judging.Active() && queue.Empty() && countPending(run) == 0
			h.Mu.RUnlock()
			if quiescent {
				break
			}
		}

		if len(inFlight) > 0 {
			<-woke
			reapInFlight(inFlight)
		} else {
			time.Sleep(s.poll)
		}
	}

	s.finalize(h, inFlight, queue, judging)
}

// dispatchReady spawns workers for as many ready tasks as the parallelism
// cap allows (spec §4.3 step 3-4).
func (s *Scheduler) dispatchReady(h *Handle, inFlight map[string]*inFlightEntry, queue *judgeQueue, judging *judgingFlag, woke chan struct{}) {
	run := h.Run
	for {
		h.Mu.Lock()
		if len(inFlight) >= run.MaxWorkers || h.Abort.Fired() {
			h.Mu.Unlock()
			return
		}
		ready := readyTasks(run)
		if len(ready) == 0 {
			h.Mu.Unlock()
			return
		}
		task := ready[0]
		now := time.Now()
		task.Status = model.TaskInProgress
		task.StartedAt = &now
		h.Mu.Unlock()

		s.bus.Emit(events.New(events.TaskUpdated, task))

		handle, err := s.worker.Spawn(h.Abort.Context(), task, run.TargetDir)
		if err != nil {
			h.Mu.Lock()
			task.Status = model.TaskFailed
			task.Error = err.Error()
			h.Mu.Unlock()
			s.bus.Emit(events.New(events.TaskUpdated, task))
			continue
		}

		h.Mu.Lock()
		task.WorkerID = handle.Worker.ID
		run.Workers = append(run.Workers, handle.Worker)
		inFlight[task.ID] = &inFlightEntry{taskID: task.ID, handle: handle}
		h.Mu.Unlock()

		s.emitRunUpdated(run)
		s.watchCompletion(h, handle, queue, judging, woke)
	}
}

// detectDeadEnd implements spec §4.3 step 5: with nothing running and
// nothing ready, cancel tasks blocked by a failed/cancelled dependency.
// Returns whether the dead-end branch was taken at all.
func (s *Scheduler) detectDeadEnd(h *Handle, inFlight map[string]*inFlightEntry) bool {
	run := h.Run

	h.Mu.Lock()
	if len(inFlight) != 0 || len(readyTasks(run)) != 0 {
		h.Mu.Unlock()
		return false
	}
	blocked := cancelBlockedTasks(run)
	h.Mu.Unlock()

	for _, t := range blocked {
		s.bus.Emit(events.New(events.TaskUpdated, t))
	}
	if len(blocked) > 0 {
		s.persist(h)
	}
	return true
}

// watchCompletion registers a goroutine that, once handle.Done fires,
// enqueues the task for judgement and pokes the main loop (spec §4.3 step
// 4 "Register a completion continuation").
func (s *Scheduler) watchCompletion(h *Handle, handle *worker.Handle, queue *judgeQueue, judging *judgingFlag, woke chan<- struct{}) {
	run := h.Run
	taskID := handle.Worker.TaskID
	go func() {
		<-handle.Done

		h.Mu.Lock()
		task := run.TaskByID(taskID)
		h.Mu.Unlock()

		if task != nil {
			queue.Push(task)
			go s.processJudgeQueue(h, queue, judging)
			s.persist(h)
			s.emitRunUpdated(run)
		}

		select {
		case woke <- struct{}{}:
		default:
		}
	}()
}

// reapInFlight drops every entry whose Done has fired. It checks the
// channel rather than the Worker's Status field directly so no additional
// synchronization with the adapter's own internal mutex is required — a
// closed Done channel is the one fact the Scheduler is guaranteed to
// observe happens-after the adapter's terminal mutation (spec §4.5 "the
// future resolves after those mutations are visible").
func reapInFlight(inFlight map[string]*inFlightEntry) {
	for id, entry := range inFlight {
		select {
		case <-entry.handle.Done:
			delete(inFlight, id)
		default:
		}
	}
}

// finalize drains whatever remains after the main loop exits (spec §4.3
// "Finalization").
func (s *Scheduler) finalize(h *Handle, inFlight map[string]*inFlightEntry, queue *judgeQueue, judging *judgingFlag) {
	run := h.Run

	for _, entry := range inFlight {
		<-entry.handle.Done
	}

	// An aborted drainer stops popping, so after abort only an in-progress
	// judge call is waited for; queued items are left undrained.
	for judging.Active() || (!queue.Empty() && !h.Abort.Fired()) {
		time.Sleep(judgeDrainPoll)
	}

	h.Mu.Lock()
	if h.Abort.Fired() {
		s.applyAbort(h)
		h.Mu.Unlock()
		s.persist(h)
		return
	}
	completed := false
	if !run.Status.IsTerminal() {
		run.Status = model.RunCompleted
		now := time.Now()
		run.CompletedAt = &now
		completed = true
	}
	h.Mu.Unlock()
	s.persist(h)
	if completed {
		s.bus.Emit(events.New(events.RunCompleted, run))
	}
}

// applyAbort cancels running workers, reverts in-progress tasks to pending,
// and lands the Run on paused or stopped per the abort's cause (spec §4.3 "Abort
// behavior"). Caller must hold h.Mu.
func (s *Scheduler) applyAbort(h *Handle) {
	run := h.Run

	for _, w := range run.Workers {
		if w.Status == model.WorkerRunning {
			s.worker.Cancel(w.ID)
		}
	}
	for _, t := range run.Tasks {
		if t.Status == model.TaskInProgress {
			t.Status = model.TaskPending
			t.StartedAt = nil
		}
	}

	if h.Abort.Cause() == CauseStop {
		run.Status = model.RunStopped
	} else {
		run.Status = model.RunPaused
	}
	now := time.Now()
	run.CompletedAt = &now
}

// processJudgeQueue is the single-consumer judge drainer (spec §4.3 "Judge
// queue processor"), guarded by the judging flag for re-entrancy safety.
func (s *Scheduler) processJudgeQueue(h *Handle, queue *judgeQueue, judging *judgingFlag) {
	if !judging.TryAcquire() {
		return
	}
	defer judging.Release()

	run := h.Run
	for {
		if h.Abort.Fired() {
			return
		}
		task, ok := queue.Pop()
		if !ok {
			return
		}

		h.Mu.Lock()
		run.Status = model.RunJudging
		h.Mu.Unlock()
		s.emitRunUpdated(run)
		log.Printf("run %s: judging task %s", run.ID, task.Title)

		result, err := s.planner.Judge(h.Abort.Context(), run, task)

		h.Mu.Lock()
		if err != nil {
			log.Printf("run %s: judge error for task %s: %v", run.ID, task.Title, err)
			run.Judgements = append(run.Judgements, &model.Judgement{
				ID:         uuid.NewString(),
				TaskID:     task.ID,
				Assessment: fmt.Sprintf("Judge error: %v", err),
				At:         time.Now(),
			})
		} else {
			s.applyJudgement(h, task, result)
		}

		goalComplete := run.Status == model.RunCompleted
		if run.Status == model.RunJudging {
			run.Status = model.RunExecuting
		}
		h.Mu.Unlock()
		s.persist(h)
		if goalComplete {
			s.bus.Emit(events.New(events.RunCompleted, run))
			return
		}
		s.emitRunUpdated(run)
	}
}

// applyJudgement mutates run with one judge result. Caller must hold h.Mu.
func (s *Scheduler) applyJudgement(h *Handle, task *model.Task, result planner.JudgeResult) {
	run := h.Run
	judgementID := uuid.NewString()

	var newTaskIDs []string
	if len(result.NewTasks) > 0 {
		newTasks := specsToTasks(result.NewTasks, judgementID, run.Tasks)
		run.Tasks = append(run.Tasks, newTasks...)
		for _, t := range newTasks {
			newTaskIDs = append(newTaskIDs, t.ID)
		}
	}

	judgement := &model.Judgement{
		ID:           judgementID,
		TaskID:       task.ID,
		Assessment:   result.Assessment,
		NewTaskIDs:   newTaskIDs,
		GoalComplete: result.GoalComplete,
		At:           time.Now(),
	}
	run.Judgements = append(run.Judgements, judgement)
	s.bus.Emit(events.New(events.JudgementCreated, judgement))
	log.Printf("run %s: judgement for %s: %s", run.ID, task.Title, result.Assessment)

	if result.GoalComplete {
		anyInProgress := false
		for _, t := range run.Tasks {
			if t.Status == model.TaskPending {
				t.Status = model.TaskCancelled
			}
			if t.Status == model.TaskInProgress {
				anyInProgress = true
			}
		}
		if !anyInProgress {
			run.Status = model.RunCompleted
			now := time.Now()
			run.CompletedAt = &now
		} else {
			log.Printf("run %s: goal marked complete — waiting for running tasks", run.ID)
		}
	}
}

// persist saves a defensive snapshot of h.Run, taken under h.Mu, so the
// Store never reads fields concurrently with another goroutine's
// lock-guarded mutation (spec §5 "Run Store reads take a defensive copy
// under the per-Run guard").
func (s *Scheduler) persist(h *Handle) {
	if s.store == nil {
		return
	}
	snapshot := h.Snapshot()
	if err := s.store.Save(snapshot); err != nil {
		log.Printf("run %s: persist failed: %v", snapshot.ID, err)
	}
}

func (s *Scheduler) emitRunUpdated(run *model.Run) {
	s.bus.Emit(events.New(events.RunUpdated, run))
}

// readyTasks returns pending tasks whose dependencies are all completed,
// ordered by priority (smaller first) then creation order (spec §4.3 step
// 3). Caller must hold at least a read lock.
func readyTasks(run *model.Run) []*model.Task {
	var ready []*model.Task
	for _, t := range run.Tasks {
		if t.Status != model.TaskPending {
			continue
		}
		blocked := false
		for _, depID := range t.DependsOn {
			dep := run.TaskByID(depID)
			if dep == nil || dep.Status != model.TaskCompleted {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, t)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority < ready[j].Priority
		}
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})
	return ready
}

// cancelBlockedTasks marks every pending task depending on a failed or
// cancelled task as cancelled (spec §4.3 step 5). Caller must hold the
// write lock. Returns the tasks it changed.
func cancelBlockedTasks(run *model.Run) []*model.Task {
	var changed []*model.Task
	for _, t := range run.Tasks {
		if t.Status != model.TaskPending {
			continue
		}
		for _, depID := range t.DependsOn {
			dep := run.TaskByID(depID)
			if dep != nil && (dep.Status == model.TaskFailed || dep.Status == model.TaskCancelled) {
				t.Status = model.TaskCancelled
				t.Error = blockedReason
				changed = append(changed, t)
				break
			}
		}
	}
	return changed
}

func hasPendingTasks(run *model.Run) bool {
	return countPending(run) > 0
}

func countPending(run *model.Run) int {
	n := 0
	for _, t := range run.Tasks {
		if t.Status == model.TaskPending {
			n++
		}
	}
	return n
}

// specsToTasks mints fresh Task records from planner TaskSpecs, resolving
// dependency titles case-insensitively. During planning, existing is nil and
// titles resolve only within the freshly returned batch. On the judge path,
// existing is the run's current task list, so a judge-spawned task may
// depend on any task already known to the run, not just its batch siblings
// (spec §4.3 "Judge queue processor": "resolved against the current task
// list (case-insensitive)").
func specsToTasks(specs []planner.TaskSpec, spawnedBy string, existing []*model.Task) []*model.Task {
	tasks := make([]*model.Task, len(specs))
	byTitle := make(map[string]string, len(specs)+len(existing))
	for _, t := range existing {
		byTitle[strings.ToLower(t.Title)] = t.ID
	}
	batchTitles := make(map[string]bool, len(specs))
	now := time.Now()

	for i, spec := range specs {
		id := uuid.NewString()
		priority := spec.Priority
		if spawnedBy != "" && priority == 0 {
			priority = defaultNewTaskPriority
		}
		tasks[i] = &model.Task{
			ID:          id,
			Title:       spec.Title,
			Description: spec.Description,
			Status:      model.TaskPending,
			Priority:    priority,
			SpawnedBy:   spawnedBy,
			CreatedAt:   now,
		}
		key := strings.ToLower(spec.Title)
		if batchTitles[key] {
			log.Printf("scheduler: duplicate task title %q in same batch, dependency resolution is undefined for it", spec.Title)
		}
		batchTitles[key] = true
		byTitle[key] = id
	}

	for i, spec := range specs {
		for _, depTitle := range spec.DependencyTitles {
			if depID, ok := byTitle[strings.ToLower(depTitle)]; ok {
				tasks[i].DependsOn = append(tasks[i].DependsOn, depID)
			} else {
				log.Printf("scheduler: task %q depends on unresolved title %q, dropping", spec.Title, depTitle)
			}
		}
	}

	return tasks
}
