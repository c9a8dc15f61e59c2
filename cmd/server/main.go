package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobpilot/internal/app"
	"jobpilot/internal/config"
	"jobpilot/internal/logger"

	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("JOBPILOT_CONFIG"), "path to a YAML config file")
	jsonLogs := flag.Bool("json", true, "json format for logging")
	debug := flag.Bool("debug", false, "verbose/debug output")
	flag.Parse()

	lg, err := logger.New(*jsonLogs, *debug)
	if err != nil {
		log.Fatalf("creating a logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		lg.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()
	bootstrap, cleanup, err := app.Bootstrap(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("failed to bootstrap app", zap.Error(err))
	}
	defer func() {
		if err := cleanup(); err != nil {
			lg.Warn("cleanup error", zap.Error(err))
		}
	}()

	addr, err := app.ListenAddr(cfg.App.HTTPPort)
	if err != nil {
		lg.Fatal("invalid HTTP port", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("http server listening", zap.String("addr", addr))
		errCh <- bootstrap.Fiber.Listen(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			lg.Error("server error", zap.Error(err))
		}
	case sig := <-sigCh:
		lg.Info("shutting down", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := bootstrap.Fiber.ShutdownWithContext(shutdownCtx); err != nil {
			lg.Warn("shutdown error", zap.Error(err))
		}
	}
}
