// Command backfill loads the configured historical range chunk by chunk,
// pausing between requests to stay within the API rate limit.
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
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := kma.NewClient(cfg, logger)
	opts := domain.Options{ApplyTextCleaning: cfg.TextCleaning, Location: cfg.Location}
	runner := pipeline.New(client, sink.Opener(cfg, logger), opts, nil, logger, metrics)

	plan := pipeline.Plan{
		Start:       cfg.BackfillStart,
		End:         cfg.BackfillEnd,
		Granularity: pipeline.Granularity(cfg.BackfillChunk),
		Pause:       cfg.BackfillPause,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := 0
	if err := runner.RunBackfill(ctx, plan); err != nil {
		logger.Error("backfill aborted", "error", err)
		code = 1
	}

	if cfg.PushgatewayURL != "" {
		if err := metrics.Push(context.Background(), cfg.PushgatewayURL, "kma-backfill"); err != nil {
			logger.Warn("metrics push failed", "error", err)
		}
	}
	if code == 0 {
		logger.Info("backfill complete")
	}
	return code
}
