// Package planner defines the Planner Adapter: the core's interface onto
// the external planning/judge service (spec §4.5). The core never
// interprets prompts or model output beyond the two pure functions below;
// everything about how a plan or judgement gets produced is the adapter
// implementation's concern.
package planner

import (
	"context"

	"github.com/agentfleet/fleet/internal/model"
)

// TaskSpec is one task as returned by the planner, before the Scheduler
// mints an ID and resolves dependency titles to ids (spec §4.3).
type TaskSpec struct {
	Title            string
	Description      string
	Priority         int
	DependencyTitles []string
}

// PlanResult is the output of an initial plan call.
type PlanResult struct {
	Analysis string
	Tasks    []TaskSpec
}

// JudgeResult is the output of a judge call.
type JudgeResult struct {
	Assessment   string
	GoalComplete bool
	NewTasks     []TaskSpec
}

// Planner is the external planning service the Scheduler consults. Both
// methods may fail; the Scheduler's handling of each failure differs (spec
// §7): a Plan failure fails the Run, a Judge failure is recorded as a
// synthetic Judgement and the Run continues.
type Planner interface {
	// Plan produces the initial task breakdown for a Run's goal.
	Plan(ctx context.Context, run *model.Run) (PlanResult, error)

	// Judge assesses a just-completed task and may propose follow-up work.
	Judge(ctx context.Context, run *model.Run, task *model.Task) (JudgeResult, error)
}
