package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/agentfleet/fleet/internal/model"
)

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func countCompleted(run *model.Run) int {
	n := 0
	for _, t := range run.Tasks {
		if t.Status == model.TaskCompleted {
			n++
		}
	}
	return n
}
