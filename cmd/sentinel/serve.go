package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/cnii-sentinel/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the sweep scheduler",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger := rt.logger

	a, err := app.New(ctx, rt.cfg, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}

	sched, err := a.Scheduler()
	if err != nil {
		_ = a.Close(context.WithoutCancel(ctx))
		return fmt.Errorf("build scheduler: %w", err)
	}
	if sched != nil {
		sched.Start()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", rt.cfg.Server.Port),
		Handler:           a.Server().Handler(),
		ReadHeaderTimeout: rt.cfg.Server.ReadHeaderTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", rt.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rt.cfg.Server.ShutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("server shutdown error", zap.Error(shutdownErr))
	}
	if sched != nil {
		if stopErr := sched.Stop(shutdownCtx); stopErr != nil {
			logger.Warn("scheduler stop interrupted", zap.Error(stopErr))
		}
	}
	if closeErr := a.Close(shutdownCtx); closeErr != nil {
		logger.Warn("service shutdown incomplete", zap.Error(closeErr))
	}
	logger.Info("shutdown complete")
	return err
}
