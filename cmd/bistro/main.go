package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/kirinyoku/bistro/docs"
	"github.com/kirinyoku/bistro/internal/app"
	"github.com/kirinyoku/bistro/internal/config"
)

// @title Bistro API
// @version 1.0
// @description Restaurant floor, reservation and order ledger service.
// @host localhost:8080
// @BasePath /
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application finished with error", "error", err)
		os.Exit(1)
	}
}
