// Command updater appends yesterday's observation for the configured station.
// It is meant to run once a day from a scheduler.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/OIYJJ/weather-data-automation/internal/adapter/kma"
	"github.com/OIYJJ/weather-data-automation/internal/config"
	"github.com/OIYJJ/weather-data-automation/internal/domain"
	"github.com/OIYJJ/weather-data-automation/internal/observability"
	"github.com/OIYJJ/weather-data-automation/internal/pipeline"
	"github.com/OIYJJ/weather-data-automation/internal/sink"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := kma.NewClient(cfg, logger)
	opts := domain.Options{ApplyTextCleaning: cfg.TextCleaning, Location: cfg.Location}
	runner := pipeline.New(client, sink.Opener(cfg, logger), opts, nil, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("daily update started", "station", cfg.StationID, "sink", cfg.Sink)
	if err := runner.RunDaily(ctx); err != nil {
		logger.Error("daily update failed", "error", err)
	}

	if cfg.PushgatewayURL != "" {
		if err := metrics.Push(context.Background(), cfg.PushgatewayURL, "kma-updater"); err != nil {
			logger.Warn("metrics push failed", "error", err)
		}
	}
	logger.Info("daily update complete")
}
