package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/OIYJJ/weather-data-automation/internal/domain"
	"github.com/OIYJJ/weather-data-automation/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Fetcher retrieves raw observations from the weather service.
type Fetcher interface {
	FetchRange(ctx context.Context, start, end time.Time) ([]domain.RawObservation, error)
	FetchDay(ctx context.Context, day time.Time) (domain.RawObservation, bool, error)
}

// Appender persists normalized records. Each Append call is one bulk write.
type Appender interface {
	Append(ctx context.Context, records []domain.NormalizedRecord) error
	Close() error
}

// OpenFunc connects to the destination. It is called once per run.
type OpenFunc func(ctx context.Context) (Appender, error)

// Runner orchestrates the fetch-normalize-append cycle for both modes.
// Runs are strictly sequential and nothing is retried.
type Runner struct {
	fetcher Fetcher
	open    OpenFunc
	opts    domain.Options
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Runner. A nil clock uses the real clock.
func New(f Fetcher, open OpenFunc, opts domain.Options, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Runner{
		fetcher: f,
		open:    open,
		opts:    opts,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Yesterday returns the calendar day before now in the runner's zone.
func (r *Runner) Yesterday() time.Time {
	now := r.clock.Now().In(r.location())
	return truncateDay(now).AddDate(0, 0, -1)
}

// RunDaily fetches yesterday's observation and appends one row. Missing data
// and upstream or sink failures are logged and do not produce an error.
func (r *Runner) RunDaily(ctx context.Context) error {
	start := r.clock.Now()
	day := r.Yesterday()
	log := r.logger.With("date", day.Format(time.DateOnly))
	log.Info("fetching daily observation")

	raw, ok, err := r.fetcher.FetchDay(ctx, day)
	if err != nil {
		r.metrics.FetchErrors.Inc()
		log.Warn("fetch failed", "error", err)
		return nil
	}
	if !ok {
		r.metrics.EmptyUnits.Inc()
		log.Warn("no observation returned")
		return nil
	}
	r.metrics.ObservationsFetched.Inc()

	rec := domain.Normalize(raw, r.opts)

	sink, err := r.open(ctx)
	if err != nil {
		r.metrics.AppendErrors.Inc()
		log.Error("open sink failed", "error", err)
		return nil
	}
	defer r.closeSink(sink)

	if err := sink.Append(ctx, []domain.NormalizedRecord{rec}); err != nil {
		r.metrics.AppendErrors.Inc()
		log.Error("append failed", "error", err)
		return nil
	}

	r.recordSuccess(1, start)
	log.Info("daily row appended",
		"precip_type", rec.PrecipType,
		"primary_tag", rec.PrimaryTag,
	)
	return nil
}

// RunBackfill processes every chunk of the plan in order. The sink is opened
// before the first request; failing to open it is returned as an error.
// A chunk whose fetch or append fails is logged and skipped.
func (r *Runner) RunBackfill(ctx context.Context, plan Plan) error {
	chunks, err := plan.Chunks()
	if err != nil {
		return err
	}

	sink, err := r.open(ctx)
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	defer r.closeSink(sink)

	r.logger.Info("backfill started",
		"start", plan.Start.Format(time.DateOnly),
		"end", plan.End.Format(time.DateOnly),
		"chunks", len(chunks),
		"granularity", plan.Granularity,
	)

	var total int
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && plan.Pause > 0 {
			r.clock.Sleep(plan.Pause)
		}
		total += r.processChunk(ctx, sink, chunk)
	}

	r.logger.Info("backfill finished", "rows", total, "chunks", len(chunks))
	return nil
}

// processChunk runs one fetch-normalize-append cycle and returns the number
// of rows appended.
func (r *Runner) processChunk(ctx context.Context, sink Appender, chunk DateRange) int {
	start := r.clock.Now()
	log := r.logger.With("range", chunk.String())
	log.Info("collecting chunk")

	items, err := r.fetcher.FetchRange(ctx, chunk.Start, chunk.End)
	if err != nil {
		r.metrics.FetchErrors.Inc()
		log.Warn("fetch failed, skipping chunk", "error", err)
		return 0
	}
	if len(items) == 0 {
		r.metrics.EmptyUnits.Inc()
		log.Warn("no observations, skipping chunk")
		return 0
	}
	r.metrics.ObservationsFetched.Add(float64(len(items)))

	records := make([]domain.NormalizedRecord, len(items))
	for i := range items {
		records[i] = domain.Normalize(items[i], r.opts)
	}

	if err := sink.Append(ctx, records); err != nil {
		r.metrics.AppendErrors.Inc()
		log.Error("append failed, skipping chunk", "error", err, "rows", len(records))
		return 0
	}

	r.recordSuccess(len(records), start)
	log.Info("chunk appended", "rows", len(records))
	return len(records)
}

func (r *Runner) recordSuccess(rows int, start time.Time) {
	r.metrics.RowsAppended.Add(float64(rows))
	r.metrics.UnitDuration.Observe(r.clock.Since(start).Seconds())
	r.metrics.LastSuccess.Set(float64(r.clock.Now().Unix()))
}

func (r *Runner) closeSink(sink Appender) {
	if err := sink.Close(); err != nil {
		r.logger.Warn("close sink failed", "error", err)
	}
}

func (r *Runner) location() *time.Location {
	if r.opts.Location != nil {
		return r.opts.Location
	}
	return time.Local
}
