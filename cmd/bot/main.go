package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"standx-maker-bot/internal/app"
	"standx-maker-bot/internal/config"
	"standx-maker-bot/internal/logging"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "simulate order placement and cancellation")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *dryRun {
		cfg.Strategy.DryRun = true
	}
	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()
	log.Info("config loaded", zap.String("path", *configPath), zap.String("symbol", cfg.Strategy.Symbol))

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize app", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("app terminated", zap.Error(err))
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
