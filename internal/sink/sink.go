// Package sink selects and opens the destination configured by SINK.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	kafkaadapter "github.com/OIYJJ/weather-data-automation/internal/adapter/kafka"
	"github.com/OIYJJ/weather-data-automation/internal/adapter/sheets"
	"github.com/OIYJJ/weather-data-automation/internal/adapter/xlsx"
	"github.com/OIYJJ/weather-data-automation/internal/config"
	"github.com/OIYJJ/weather-data-automation/internal/pipeline"
)

// Opener returns a pipeline.OpenFunc for cfg.Sink.
func Opener(cfg *config.Config, logger *slog.Logger) pipeline.OpenFunc {
	return func(ctx context.Context) (pipeline.Appender, error) {
		return Open(ctx, cfg, logger)
	}
}

// Open connects to the configured destination.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Appender, error) {
	logger = logger.With("sink", cfg.Sink)
	switch cfg.Sink {
	case config.SinkSheets:
		a, err := sheets.NewAppender(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("google sheets sink ready", "sheet", cfg.SheetName)
		return a, nil
	case config.SinkXLSX:
		a, err := xlsx.NewAppender(cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("xlsx sink ready", "path", cfg.XLSXPath, "sheet", cfg.SheetName)
		return a, nil
	case config.SinkKafka:
		logger.Info("kafka sink ready", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		return kafkaadapter.NewWriter(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}
