// fundflow API server entry point.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Haleralex/fundflow/internal/config"
	"github.com/Haleralex/fundflow/internal/container"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	app := container.New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := app.Initialize(ctx); err != nil {
		cancel()
		log.Fatalf("failed to initialize application: %v", err)
	}
	cancel()

	if err := app.Run(); err != nil {
		app.Logger().Error("Server error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		app.Logger().Error("Shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
