package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCreateCmd(a *App) *cobra.Command {
	var maxWorkers int

	cmd := &cobra.Command{
		Use:   "create <goal> <target-dir>",
		Short: "Create a new Run in the idle state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := a.manager.Create(args[0], args[1], maxWorkers)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), run.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum concurrent workers (default 3, clamped to [1,10])")
	return cmd
}

func newStartCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "start <run-id>",
		Short: "Start a Run's pipeline (idle or paused -> planning/executing)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.manager.Start(args[0])
		},
	}
}

func newStopCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <run-id>",
		Short: "Stop a Run (idempotent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.manager.Stop(args[0])
		},
	}
}

func newPauseCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <run-id>",
		Short: "Pause an active Run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.manager.Pause(args[0])
		},
	}
}

func newResumeCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <run-id>",
		Short: "Resume a paused or stopped Run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.manager.Resume(args[0])
		},
	}
}

func newListCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every known Run, most recently created first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs := a.manager.List()
			w := cmd.OutOrStdout()
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%-10s\t%s\n", run.ID, run.Status, fmt.Sprintf("%d/%d", countCompleted(run), len(run.Tasks)), run.Goal)
			}
			return nil
		},
	}
}

func newGetCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <run-id>",
		Short: "Print a Run's full state as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := a.manager.Get(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, run)
		},
	}
}

func newStatusCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print which adapters are configured and a run count summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h := a.manager.Health()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "planner: %s\n", h.PlannerKind)
			fmt.Fprintf(w, "worker:  %s\n", h.WorkerKind)
			fmt.Fprintf(w, "runs:    %d active / %d known\n", h.ActiveRuns, h.KnownRuns)
			return nil
		},
	}
}

func newShutdownCmd(a *App) *cobra.Command {
	var graceSeconds int

	cmd := &cobra.Command{
		Use:   "shutdown",
		Short: "Stop every active Run and cancel its workers (Lifecycle Reaper sweep)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.reaper.Shutdown(time.Duration(graceSeconds) * time.Second)
			return nil
		},
	}
	cmd.Flags().IntVar(&graceSeconds, "grace", 10, "Seconds to wait for active runs to settle before cancelling workers")
	return cmd
}

func newVersionCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print fleetctl's version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "fleetctl %s (%s, %s)\n", a.version, a.commit, a.date)
			return nil
		},
	}
}
