// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wardenmc/warden/internal/auth"
	authpg "github.com/wardenmc/warden/internal/auth/postgres"
	"github.com/wardenmc/warden/internal/config"
	"github.com/wardenmc/warden/internal/control"
	"github.com/wardenmc/warden/internal/core"
	"github.com/wardenmc/warden/internal/host"
	"github.com/wardenmc/warden/internal/logging"
	"github.com/wardenmc/warden/internal/observability"
	"github.com/wardenmc/warden/internal/quarantine"
	"github.com/wardenmc/warden/internal/scheduler"
	"github.com/wardenmc/warden/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the warden core in standalone mode",
		Long: `Run the warden core against a local in-process host. Standalone mode
drives ticks from a wall-clock timer and serves metrics and health
probes; an embedding game server replaces the local host.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("observability.addr", "", "metrics/health listen address")
	cmd.Flags().String("logging.level", "", "log level (debug, info, warn, error)")
	cmd.Flags().String("logging.format", "", "log format (json or text)")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	logging.SetDefault("warden", version, cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	localHost := host.NewLocal(
		host.FlatWorld{Ground: 64, Floor: -64, Top: 320},
		host.LogNotifier{Logger: logger},
	)

	engine, err := core.NewEngine(cfg, core.EngineDeps{
		Host:   localHost,
		Repo:   authpg.NewUserRepository(pool),
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	engine.Bind()
	if err := engine.Start(ctx); err != nil {
		return err
	}

	ctl := control.NewServer(func() { stop() }, func() (bool, int) {
		return engine.Ready(), engine.Sandbox().Population()
	}, logger)
	if err := ctl.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if stopErr := ctl.Stop(shutdownCtx); stopErr != nil {
			logger.Warn("failed to stop control socket", "error", stopErr)
		}
	}()

	if cfg.Observability.Enabled {
		obsServer, err := observability.NewServer(cfg.Observability.Addr, engine.Ready,
			auth.RegisterMetrics, quarantine.RegisterMetrics, scheduler.RegisterMetrics)
		if err != nil {
			return err
		}
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
				logger.Warn("failed to stop observability server", "error", stopErr)
			}
		}()
		go func() {
			if serveErr, ok := <-obsErrCh; ok && serveErr != nil {
				logger.Error("observability server failed", "error", serveErr)
				stop()
			}
		}()
	}

	// Standalone tick loop at the nominal rate.
	interval := time.Duration(float64(time.Second) / scheduler.NominalRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("warden serving", "tick_interval", interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			if err := ctx.Err(); err != nil && err != context.Canceled {
				return oops.Wrap(err)
			}
			return nil
		case <-ticker.C:
			localHost.Tick()
		}
	}
}
