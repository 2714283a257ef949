package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/ratelimit"

	"github.com/lugondev/solana-guardian/internal/classify"
	"github.com/lugondev/solana-guardian/internal/fetcher"
	"github.com/lugondev/solana-guardian/internal/metrics"
	"github.com/lugondev/solana-guardian/internal/scheduler"
	"github.com/lugondev/solana-guardian/internal/sink"
	"github.com/lugondev/solana-guardian/internal/snapshot"
	"github.com/lugondev/solana-guardian/internal/watchlist"

	// Register the database snapshot backends.
	_ "github.com/lugondev/solana-guardian/internal/snapshot/mongo"
	_ "github.com/lugondev/solana-guardian/internal/snapshot/postgres"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor the watchlist until interrupted",
	Long: `Check every program on the watchlist once per interval and emit an
alert for each security relevant change. The first observation of a program
is recorded as its baseline and never alerts.

Stops cleanly on SIGINT or SIGTERM.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	flags := watchCmd.Flags()
	flags.Int("interval", 0, "seconds between checks (default 300)")
	flags.Int("workers", 0, "programs checked concurrently (default 4)")
	flags.Bool("once", false, "run a single check against the stored snapshots and exit")
	flags.Bool("json", false, "emit alerts as JSON lines instead of text")
	flags.String("webhook", "", "POST every alert as JSON to this URL")
	flags.String("apprise", "", "deliver every alert to this Apprise API endpoint")

	bindFlag(watchCmd, "guardian.workers", "workers")
	bindFlag(watchCmd, "sinks.json", "json")
	bindFlag(watchCmd, "sinks.webhook_url", "webhook")
	bindFlag(watchCmd, "sinks.apprise_url", "apprise")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	// The flag is whole seconds while the config key is a duration.
	if cmd.Flags().Changed("interval") {
		seconds, _ := cmd.Flags().GetInt("interval")
		cfg.Guardian.Interval = time.Duration(seconds) * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	registry, err := watchlist.FromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := snapshot.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close snapshot store", "error", err)
		}
	}()

	sinks := sink.FromConfig(cfg.Sinks, cmd.OutOrStdout(), logger)
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Error("failed to close sinks", "error", err)
		}
	}()

	s, err := scheduler.New(
		scheduler.ConfigFrom(cfg.Guardian, cfg.Metrics),
		registry,
		fetcher.NewFromConfig(cfg.Solana).WithLogger(logger),
		store,
		classify.New(),
		sinks,
	)
	if err != nil {
		return err
	}

	s.WithLogger(logger).
		WithMetrics(newMetrics()).
		WithRateLimiter(newLimiter())

	logger.Info("watching programs",
		"rpc", cfg.Solana.GetRPCEndpoint(),
		"programs", registry.Len(),
		"storage", cfg.Storage.Type,
		"sinks", sinks.Len(),
	)

	if once, _ := cmd.Flags().GetBool("once"); once {
		report := s.RunOnce(ctx)
		if report.Failed > 0 {
			return fmt.Errorf("%d of %d programs could not be checked", report.Failed, registry.Len())
		}
		return nil
	}

	if err := s.Run(ctx); err != nil {
		return fmt.Errorf("guardian stopped: %w", err)
	}
	return nil
}

func newMetrics() *metrics.Collection {
	c := metrics.NewCollection()
	if cfg.Metrics.Enabled {
		c.Add(metrics.NewLogMetrics(logger))
	}
	if cfg.Metrics.Listen != "" {
		c.Add(metrics.NewPrometheusMetrics(cfg.Metrics.Listen).WithLogger(logger))
	}
	return c
}

func newLimiter() ratelimit.Limiter {
	if cfg.Solana.RateLimit <= 0 {
		return ratelimit.NewUnlimited()
	}
	return ratelimit.New(cfg.Solana.RateLimit)
}
