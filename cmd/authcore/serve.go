// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cinebook/authcore/internal/observability"
	"github.com/cinebook/authcore/pkg/errutil"
)

// shutdownTimeout bounds graceful shutdown of the observability server.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd(deps *AppDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the metrics and health endpoints and the reset purge loop",
		Long: `Wire the authentication service, expose /metrics, /healthz/liveness and
/healthz/readiness on metrics.addr, and periodically delete expired reset tokens
until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, deps)
		},
	}
}

func runServe(cmd *cobra.Command, deps *AppDeps) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := openApp(cmd, deps)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	var metrics *observability.Metrics
	var obsServer *observability.Server
	if addr := a.cfg.Metrics.Addr; addr != "" {
		obsServer = observability.NewServer(addr, version, a.ready)
		errCh, err := obsServer.Start()
		if err != nil {
			return err
		}
		metrics = obsServer.Metrics()
		go func() {
			if err, ok := <-errCh; ok && err != nil {
				errutil.LogErrorContext(ctx, logger, slog.LevelError, "observability server failed", err)
				cancel()
			}
		}()
	}

	purgeDone := make(chan struct{})
	go func() {
		defer close(purgeDone)
		purgeLoop(ctx, a, metrics)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("authcore started")
	logger.Info("authcore ready", "reset_store", a.cfg.Reset.Store)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	cancel()
	<-purgeDone

	if obsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer shutdownCancel()
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// purgeLoop deletes expired reset tokens once at start and then every
// reset.purge_every until ctx is done. A non-positive interval disables it.
func purgeLoop(ctx context.Context, a *app, metrics *observability.Metrics) {
	every := a.cfg.Reset.PurgeEvery
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		purgeOnce(ctx, a, metrics)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func purgeOnce(ctx context.Context, a *app, metrics *observability.Metrics) {
	n, err := purgeExpired(ctx, a, time.Now())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if metrics != nil {
			metrics.ResetPurgeFailures.Inc()
		}
		errutil.LogErrorContext(ctx, a.logger, slog.LevelWarn, "reset token purge failed", err)
		return
	}
	if metrics != nil {
		metrics.ResetTokensPurged.Add(float64(n))
	}
	if n > 0 {
		a.logger.Info("purged expired reset tokens", "count", n)
	}
}
