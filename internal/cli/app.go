// Package cli wires fleet's Run Manager to a Cobra command tree: create,
// start, stop, pause, resume, list, get and watch. Grounded on the
// teacher's internal/cli/cli.go (the App struct and setupRootCmd) and
// internal/cli/watch.go (per-command cobra.Command construction).
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentfleet/fleet/internal/events"
	"github.com/agentfleet/fleet/internal/reaper"
	"github.com/agentfleet/fleet/internal/runmanager"
)

// App is the CLI application: a root Cobra command wired to a live
// Run Manager and Lifecycle Reaper.
type App struct {
	rootCmd *cobra.Command

	manager *runmanager.Manager
	reaper  *reaper.Reaper

	verbose bool

	version string
	commit  string
	date    string
}

// New creates a CLI application wired to manager and reaper.
func New(manager *runmanager.Manager, r *reaper.Reaper) *App {
	a := &App{manager: manager, reaper: r}
	a.setupRootCmd()
	return a
}

// Execute runs the CLI application against ctx.
func (a *App) Execute(ctx context.Context) error {
	return a.rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version string reported by `fleetctl version`.
func (a *App) SetVersion(version, commit, date string) {
	a.version = version
	a.commit = commit
	a.date = date
}

func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "fleetctl",
		Short: "Control surface for autonomous coding agent fleets",
		Long: `fleetctl creates, starts and watches Runs: goal-directed, multi-task
orchestrations of autonomous coding agent workers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	a.rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")
	a.rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// Verbose mode logs every bus event to stderr for the lifetime of the
		// process; the subscription is never torn down since fleetctl is a
		// one-shot CLI invocation, not a long-lived server.
		if a.verbose {
			a.manager.Events().Handle(events.LogHandler(events.LogConfig{Writer: cmd.ErrOrStderr()}))
		}
	}

	a.rootCmd.AddCommand(
		newCreateCmd(a),
		newStartCmd(a),
		newStopCmd(a),
		newPauseCmd(a),
		newResumeCmd(a),
		newListCmd(a),
		newGetCmd(a),
		newWatchCmd(a),
		newStatusCmd(a),
		newShutdownCmd(a),
		newVersionCmd(a),
	)
}
