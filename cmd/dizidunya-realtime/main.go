package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/florentina1509/dizidunya/internal/server"
	"github.com/florentina1509/dizidunya/pkg/config"
	"github.com/florentina1509/dizidunya/pkg/logging"
)

func main() {
	bootLogger := logging.New(logging.LevelInfo, "text")

	cfg, err := config.Load(bootLogger, "config")
	if err != nil {
		bootLogger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messages, closeStore, err := server.OpenStore(ctx, cfg.Store)
	if err != nil {
		logger.Error("Failed to open message store", slog.String("driver", cfg.Store.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()
	logger.Info("Message store ready", slog.String("driver", cfg.Store.Driver))

	app, err := server.NewApp(logger, ctx, cfg, messages)
	if err != nil {
		logger.Error("Failed to build application", slog.Any("error", err))
		os.Exit(1)
	}
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		closeStore()
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
