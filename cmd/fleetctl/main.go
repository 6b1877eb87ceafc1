package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentfleet/fleet/internal/cli"
	"github.com/agentfleet/fleet/internal/config"
	"github.com/agentfleet/fleet/internal/events"
	"github.com/agentfleet/fleet/internal/planner"
	"github.com/agentfleet/fleet/internal/reaper"
	"github.com/agentfleet/fleet/internal/runmanager"
	"github.com/agentfleet/fleet/internal/scheduler"
	"github.com/agentfleet/fleet/internal/store"
	"github.com/agentfleet/fleet/internal/worker"
)

// Build-time variables (set via ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("FLEET_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	st, err := store.Open(cfg.StoreDir + "/fleet.db")
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	bus := events.NewBus()
	defer bus.Close()

	p := planner.NewCLI(cfg.PlannerCommand, "")
	w := worker.NewProcessAdapter(worker.NewCLIRunner(cfg.WorkerCommand))

	manager := runmanager.New(p, w, bus, st, scheduler.WithPollInterval(cfg.PollInterval))
	r := reaper.New(manager, w)

	stopSnapshots := st.StartSnapshotTicker(cfg.SnapshotInterval, manager.List)
	defer stopSnapshots()

	if _, err := r.Startup(); err != nil {
		return fmt.Errorf("startup reconciliation: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		r.Shutdown(shutdownGrace)
	}()

	app := cli.New(manager, r)
	app.SetVersion(version, commit, date)
	return app.Execute(ctx)
}

// shutdownGrace bounds how long the Lifecycle Reaper waits for active Runs
// to settle on their own before forcing worker cancellation.
const shutdownGrace = 10 * time.Second
