package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"jobpilot/internal/app"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the live event stream",
	RunE: func(cmd *cobra.Command, _ []string) error {
		lg, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = lg.Sync() }()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, cleanup, err := app.Bootstrap(ctx, cfg, lg)
		if err != nil {
			return err
		}
		defer func() {
			if err := cleanup(); err != nil {
				lg.Warn("cleanup error", zap.Error(err))
			}
		}()

		addr, err := app.ListenAddr(cfg.App.HTTPPort)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			lg.Info("http server listening", zap.String("addr", addr))
			errCh <- a.Fiber.Listen(addr)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			lg.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return a.Fiber.ShutdownWithContext(shutdownCtx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
