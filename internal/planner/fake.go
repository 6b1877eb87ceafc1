package planner

import (
	"context"

	"github.com/agentfleet/fleet/internal/model"
)

// Fake is a scripted Planner for tests, grounded on the teacher's fake
// adapter pattern (e.g. worker/fake_git_runner_test.go): canned responses
// keyed by call order, with a PlanErr/JudgeFunc escape hatch for
// scenario-specific behavior.
type Fake struct {
	PlanResult PlanResult
	PlanErr    error

	// JudgeFunc, if set, is called instead of the canned queue below —
	// needed for scenarios where the judgement depends on which task
	// completed (e.g. S3's two-stage follow-up).
	JudgeFunc func(run *model.Run, task *model.Task) (JudgeResult, error)

	// JudgeQueue is consumed in order when JudgeFunc is nil.
	JudgeQueue []JudgeResult
	judgeCalls int
}

// Plan returns the canned PlanResult/PlanErr.
func (f *Fake) Plan(_ context.Context, _ *model.Run) (PlanResult, error) {
	return f.PlanResult, f.PlanErr
}

// Judge dispatches to JudgeFunc, or pops the next queued result.
func (f *Fake) Judge(_ context.Context, run *model.Run, task *model.Task) (JudgeResult, error) {
	if f.JudgeFunc != nil {
		return f.JudgeFunc(run, task)
	}
	if f.judgeCalls >= len(f.JudgeQueue) {
		return JudgeResult{GoalComplete: true}, nil
	}
	result := f.JudgeQueue[f.judgeCalls]
	f.judgeCalls++
	return result, nil
}
