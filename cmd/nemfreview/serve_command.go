package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"nemfreview/internal/catalog"
	"nemfreview/internal/config"
	"nemfreview/internal/daemon"
	"nemfreview/internal/logging"
	"nemfreview/internal/preflight"
	"nemfreview/internal/records"
	"nemfreview/internal/review"
	"nemfreview/internal/services/mushroomobserver"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the review coordinator and its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd, ctx)
		},
	}
}

func runServe(cmdCtx context.Context, cmd *cobra.Command, ctx *commandContext) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logging.NewComponentLogger(logger, "serve")

	results := preflight.RunAll(signalCtx, cfg)
	for _, r := range results {
		if !r.Passed && r.Optional {
			logger.Warn("preflight check degraded",
				logging.Args(logging.String("check", r.Name), logging.String("detail", r.Detail))...)
		}
	}
	if failed := preflight.Failures(results); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, r := range failed {
			names = append(names, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(names, "; "))
	}

	store, err := records.Open(cfg)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	d, svc, err := buildDaemon(signalCtx, cfg, store, logger)
	if err != nil {
		store.Close()
		return err
	}
	// Close also closes the store.
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving review API on http://%s (policy %s)\n", d.Address(), svc.Policy().Name())

	<-signalCtx.Done()
	logger.Info("review coordinator shutting down")
	return nil
}

func buildDaemon(ctx context.Context, cfg *config.Config, store *records.Store, logger *slog.Logger) (*daemon.Daemon, *review.Service, error) {
	cat, err := catalog.Load(cfg, catalog.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}

	pool := mushroomobserver.NewPool(cfg, mushroomobserver.WithLogger(logger))
	svc, err := review.New(ctx, cfg, store,
		review.WithCatalog(cat),
		review.WithLookup(pool.Shared()),
		review.WithExternal(review.PoolFactory(pool)),
		review.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("init review service: %w", err)
	}

	d, err := daemon.New(cfg, store, svc, logger, daemon.WithObservationURL(pool.Shared().ObservationURL))
	if err != nil {
		return nil, nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, svc, nil
}
