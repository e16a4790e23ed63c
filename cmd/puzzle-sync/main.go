package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexjbarnes/puzzle-sync/internal/cli"
	"github.com/alexjbarnes/puzzle-sync/internal/config"
	"github.com/alexjbarnes/puzzle-sync/internal/logging"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	logger.Debug("puzzle-sync starting",
		slog.String("version", Version),
		slog.String("database", cfg.DatabaseType),
		slog.Bool("cache", cfg.RedisURL != ""),
		slog.Bool("atomic_writes", cfg.AtomicWrites),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return cli.Run(ctx, cfg, logger, os.Args[1:])
}
