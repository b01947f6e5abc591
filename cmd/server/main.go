package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zetahernandez/whisper-fastapi/internal/config"
	"github.com/zetahernandez/whisper-fastapi/internal/engine"
	"github.com/zetahernandez/whisper-fastapi/internal/metrics"
	"github.com/zetahernandez/whisper-fastapi/internal/refine"
	"github.com/zetahernandez/whisper-fastapi/internal/server"
	"github.com/zetahernandez/whisper-fastapi/internal/wyoming"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// Missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("Starting whisper gateway",
		slog.String("config", *configPath),
		slog.String("engine_endpoint", cfg.Engine.Endpoint),
		slog.Int("max_workers", cfg.Engine.MaxWorkers),
	)

	m := metrics.NewMetrics()

	remote, err := engine.NewRemote(engine.RemoteConfig{
		Endpoint: cfg.Engine.Endpoint,
		APIKey:   cfg.Engine.APIKey,
		Model:    cfg.Engine.Model,
		Timeout:  cfg.Engine.GetTimeoutDuration(),
	})
	if err != nil {
		logger.Error("Failed to create engine client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	adapter := engine.NewAdapter(remote, cfg.Engine.MaxWorkers, logger)
	refiner := refine.NewClient(refine.Config{
		BaseURL:     cfg.Refine.BaseURL,
		APIKey:      cfg.Refine.APIKey,
		Model:       cfg.Refine.Model,
		Temperature: cfg.Refine.Temperature,
	})

	httpServer := server.NewHTTPServer(cfg.Server, adapter, refiner, m, logger)

	var wyomingServer *wyoming.Server
	if cfg.Wyoming.Enabled {
		wyomingServer, err = wyoming.NewServer(cfg.Wyoming.URI, adapter, m, logger)
		if err != nil {
			logger.Error("Failed to create wyoming server", slog.String("error", err.Error()))
			os.Exit(1)
		}

		if err := wyomingServer.Start(); err != nil {
			logger.Error("Failed to start wyoming server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		logger.Error("HTTP shutdown failed", slog.String("error", err.Error()))
	}

	if wyomingServer != nil {
		if err := wyomingServer.Stop(); err != nil {
			logger.Error("Wyoming shutdown failed", slog.String("error", err.Error()))
		}
	}

	logger.Info("Shutdown complete")
}

// initLogger builds the process logger from the logging section.
func initLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %s", cfg.Level)
	}

	var output *os.File
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		output = f
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	return slog.New(handler), nil
}
