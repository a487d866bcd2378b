package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/retz/retz/internal/broker"
	"github.com/retz/retz/internal/config"
	"github.com/retz/retz/internal/dispatcher"
	"github.com/retz/retz/internal/events"
	"github.com/retz/retz/internal/metrics"
	"github.com/retz/retz/internal/planner"
	"github.com/retz/retz/internal/retention"
	"github.com/retz/retz/internal/status"
	"github.com/retz/retz/internal/store"
)

// statusPollInterval is how often runDaemon snapshots the Status reporter
// to refresh the Prometheus gauges it mirrors. Independent of the
// broker's offer cadence: it's a read-side poll, not an event reaction.
const statusPollInterval = 5 * time.Second

// newServeCmd builds `retzd serve`: open the configured Store, construct
// the configured Planner, wire a Dispatcher against a broker.Interface,
// start the retention GC ticker, and serve Prometheus /metrics.
//
// No production Mesos driver ships in this repo (spec §1 marks the driver
// itself out of scope); serve is wired against broker.Reference so the
// daemon has a concrete, runnable broker.Interface. Swapping in a real
// Mesos/Mesos-compatible driver only requires a different broker.Interface
// value at this call site.
func newServeCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg, false, a.version)
		},
	}
	return cmd
}

// runDaemon assembles every collaborator and blocks until SIGINT/SIGTERM.
// demoMode forces an in-memory store, for `retzd demo`.
func runDaemon(ctx context.Context, cfg *config.Config, demoMode bool, version string) error {
	logger := log.Default()

	dsn := cfg.StoreDSN
	if demoMode {
		dsn = "file::memory:?cache=shared"
	}

	st, err := store.Open(dsn, store.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("retzd: open store: %w", err)
	}
	defer st.Stop()

	var plan planner.Planner
	switch cfg.PlannerStrategy {
	case "fifo":
		plan = planner.FIFO()
	default:
		plan = planner.Priority()
	}

	bus := events.NewBus()
	bus.Subscribe(events.LogHandler(events.LogConfig{Writer: os.Stderr}))
	collector := metrics.NewCollector()

	br := broker.NewReference(cfg.OfferPollInterval)

	dp := dispatcher.New(st, br, plan, cfg.PlannerStrategy,
		dispatcher.WithLogger(logger),
		dispatcher.WithEvents(bus),
		dispatcher.WithMetrics(collector))

	gc := retention.New(st, cfg.RetentionInterval, time.Duration(cfg.RetentionLeewaySeconds)*time.Second,
		retention.WithLogger(logger),
		retention.WithEvents(bus))

	reporter := status.New(st, dp, version, status.WithMetrics(collector))

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := metrics.Serve(cfg.MetricsAddr); err != nil {
			logger.Printf("metrics server stopped: %v", err)
		}
	}()

	go gc.Run(runCtx)
	go pollStatus(runCtx, reporter, logger)

	mode := "serve"
	if demoMode {
		mode = "demo"
	}
	logger.Printf("retzd %s: store=%s planner=%s metrics=%s", mode, dsn, cfg.PlannerStrategy, cfg.MetricsAddr)

	return dp.Run(runCtx)
}

// pollStatus snapshots reporter every statusPollInterval so its attached
// metrics.Collector gauges stay current even between Dispatcher events.
func pollStatus(ctx context.Context, reporter *status.Reporter, logger *log.Logger) {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := reporter.Snapshot(); err != nil {
				logger.Printf("status poll failed: %v", err)
			}
		}
	}
}
