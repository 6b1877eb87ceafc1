package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// legacyCycle is one entry of a superseded run record shape that predates
// the flat tasks/judgements/workers model (spec §6 "Legacy migration").
type legacyCycle struct {
	Plan struct {
		Analysis string            `json:"analysis"`
		Tasks    []json.RawMessage `json:"tasks"`
	} `json:"plan"`
	Judgement     string     `json:"judgement"`
	ShouldContinue bool      `json:"shouldContinue"`
	CompletedAt   *time.Time `json:"completedAt"`
}

// migrateLegacyCycles inspects a raw stored record; if it carries a
// "cycles" field and no "tasks" field, it upgrades it in place into the
// current shape by concatenating each cycle's planned tasks, taking the
// first non-empty analysis, and synthesizing one Judgement per cycle. A
// record already in the current shape passes through unchanged, which
// makes the migration idempotent (spec §8 "Legacy migration is
// idempotent").
func migrateLegacyCycles(data []byte) ([]byte, error) {
	var probe struct {
		Tasks  json.RawMessage `json:"tasks"`
		Cycles []legacyCycle   `json:"cycles"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("probe legacy shape: %w", err)
	}
	if probe.Tasks != nil || len(probe.Cycles) == 0 {
		return data, nil
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("decode legacy record: %w", err)
	}

	var tasks []json.RawMessage
	analysis := ""
	var judgements []map[string]any

	for _, cycle := range probe.Cycles {
		tasks = append(tasks, cycle.Plan.Tasks...)
		if analysis == "" && cycle.Plan.Analysis != "" {
			analysis = cycle.Plan.Analysis
		}

		at := time.Now()
		if cycle.CompletedAt != nil {
			at = *cycle.CompletedAt
		}
		judgements = append(judgements, map[string]any{
			"id":           fmt.Sprintf("legacy-judgement-%d", len(judgements)),
			"taskId":       "",
			"assessment":   cycle.Judgement,
			"newTaskIds":   []string{},
			"goalComplete": !cycle.ShouldContinue,
			"at":           at,
		})
	}

	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		return nil, fmt.Errorf("encode migrated tasks: %w", err)
	}
	judgementsJSON, err := json.Marshal(judgements)
	if err != nil {
		return nil, fmt.Errorf("encode migrated judgements: %w", err)
	}
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("encode migrated analysis: %w", err)
	}

	generic["tasks"] = tasksJSON
	generic["judgements"] = judgementsJSON
	generic["analysis"] = analysisJSON
	delete(generic, "cycles")

	if _, ok := generic["workers"]; !ok {
		generic["workers"] = json.RawMessage("[]")
	}

	upgraded, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("encode migrated record: %w", err)
	}
	return upgraded, nil
}
