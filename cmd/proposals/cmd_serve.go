// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianProposals/services/proposal"
	"github.com/AleutianAI/AleutianProposals/services/proposal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tcfg := cfg.Telemetry
	if tcfg.ServiceVersion == "" {
		tcfg.ServiceVersion = proposal.ServiceVersion
	}
	shutdownTelemetry, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, rootOverride, logger.Slog(), appOptions{Journal: true, Required: true, Drift: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}
	router := proposal.NewRouter(
		proposal.NewHandlers(a.service),
		proposal.RouteOptions{RateLimitRPS: cfg.Server.RateLimitRPS, RateBurst: cfg.Server.RateBurst},
		telemetry.MetricsHandler(),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	printBanner(cmd, a.root, port)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if pending := a.queue.Drain(); len(pending) > 0 {
		logger.Info("commands left unrun", "commands", pending)
	}
	return nil
}

func printBanner(cmd *cobra.Command, root string, port int) {
	out := cmd.ErrOrStderr()
	fmt.Fprintln(out, "╔══════════════════════════════════════════╗")
	fmt.Fprintf(out, "║  Aleutian Proposals v%-20s║\n", proposal.ServiceVersion)
	fmt.Fprintln(out, "╚══════════════════════════════════════════╝")
	fmt.Fprintf(out, "  workspace: %s\n", root)
	fmt.Fprintf(out, "  listening: http://localhost:%d/v1/proposals\n", port)
}
