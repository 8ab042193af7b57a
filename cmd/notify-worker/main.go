package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"xitique/internal/config"
	"xitique/internal/services"
	"xitique/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting notify-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	scanner := services.NewNotificationScanner(repo, cfg.ScanInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Notification scanner configured",
		"interval", cfg.ScanInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	if err := scanner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Scanner stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Scanner stopped gracefully")
}
