package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/feedlab/feedlab/internal/config"
	"github.com/feedlab/feedlab/internal/runtime"
	"github.com/feedlab/feedlab/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("feedlabd", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	configPath := os.Getenv("FEEDLAB_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	opts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithConfig(cfg),
		runtime.WithCollector(cfg.Collector.URL, cfg.Collector.Token),
	}
	switch cfg.Storage.Type {
	case "memory":
		opts = append(opts, runtime.WithMemoryStorage())
	default:
		opts = append(opts, runtime.WithSQLite(cfg.Storage.SQLite.Path))
	}

	ins, err := runtime.New(opts...)
	if err != nil {
		log.Fatalf("Failed to create instrument: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- ins.Start(context.Background())
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case <-sigCh:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ins.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("instrument shutdown complete")
}
