// Package activity implements the Activity Summary: a pure function that
// digests a Worker's activity record into a compact summary for the judge
// (spec §2). It never reads or mutates global state.
package activity

import (
	"fmt"
	"strings"

	"github.com/agentfleet/fleet/internal/model"
)

// maxDetailLines bounds how many recent file/bash/error entries are
// surfaced in total, keeping the summary short enough to sit inside a judge
// prompt.
const maxDetailLines = 5

// Summarize renders w's activity into a short, judge-readable digest: a
// count per activity type, followed by the most recent file, bash and error
// entries, then the task's own result/error. w's Logs are not included.
func Summarize(task *model.Task, w *model.Worker) string {
	var b strings.Builder

	if w == nil {
		fmt.Fprintf(&b, "Task %q (no worker record)\n", task.Title)
		if task.Result != "" {
			fmt.Fprintf(&b, "Result: %s\n", task.Result)
		}
		if task.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", task.Error)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	fmt.Fprintf(&b, "Task %q (%s)\n", task.Title, w.Status)

	counts := countByType(w.Activity)
	if len(counts) > 0 {
		b.WriteString("Activity: ")
		first := true
		for _, kind := range orderedKinds() {
			n, ok := counts[kind]
			if !ok {
				continue
			}
			if !first {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%d", kind, n)
			first = false
		}
		b.WriteString("\n")
	}

	details := recentDetails(w.Activity, maxDetailLines)
	for _, d := range details {
		b.WriteString("- " + d + "\n")
	}

	if task.Result != "" {
		fmt.Fprintf(&b, "Result: %s\n", task.Result)
	}
	if task.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", task.Error)
	}

	return strings.TrimRight(b.String(), "\n")
}

func countByType(entries []model.Activity) map[model.ActivityType]int {
	counts := make(map[model.ActivityType]int)
	for _, a := range entries {
		counts[a.Type]++
	}
	return counts
}

// orderedKinds fixes a stable display order so Summarize output doesn't
// jitter between calls with the same underlying activity set.
func orderedKinds() []model.ActivityType {
	return []model.ActivityType{
		model.ActivityToolCall,
		model.ActivityFileEdit,
		model.ActivityFileCreat,
		model.ActivityBash,
		model.ActivityText,
		model.ActivityThinking,
		model.ActivityError,
	}
}

// recentDetails surfaces the most recent file/bash/error activity entries,
// the ones most useful to a judge deciding whether the task actually
// changed anything, newest first, capped at limit.
func recentDetails(entries []model.Activity, limit int) []string {
	var out []string
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		a := entries[i]
		switch a.Type {
		case model.ActivityFileEdit, model.ActivityFileCreat, model.ActivityBash, model.ActivityError:
			out = append(out, fmt.Sprintf("[%s] %s", a.Type, a.Summary))
		}
	}
	return out
}
