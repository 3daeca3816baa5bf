package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/OIYJJ/weather-data-automation/internal/domain"
	"github.com/OIYJJ/weather-data-automation/internal/observability"
	"github.com/OIYJJ/weather-data-automation/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockFetcher struct {
	mu       sync.Mutex
	byStart  map[string][]domain.RawObservation
	errStart map[string]error
	day      *domain.RawObservation
	dayErr   error
	ranges   []string
	days     []string
}

func (m *mockFetcher) FetchRange(_ context.Context, start, end time.Time) ([]domain.RawObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := start.Format(time.DateOnly)
	m.ranges = append(m.ranges, key+"~"+end.Format(time.DateOnly))
	if err := m.errStart[key]; err != nil {
		return nil, err
	}
	return m.byStart[key], nil
}

func (m *mockFetcher) FetchDay(_ context.Context, day time.Time) (domain.RawObservation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days = append(m.days, day.Format(time.DateOnly))
	if m.dayErr != nil {
		return domain.RawObservation{}, false, m.dayErr
	}
	if m.day == nil {
		return domain.RawObservation{}, false, nil
	}
	return *m.day, true, nil
}

func (m *mockFetcher) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ranges...)
}

type mockAppender struct {
	mu      sync.Mutex
	batches [][]domain.NormalizedRecord
	err     error
	closed  bool
}

func (m *mockAppender) Append(_ context.Context, records []domain.NormalizedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, records)
	return nil
}

func (m *mockAppender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func opener(a *mockAppender) pipeline.OpenFunc {
	return func(context.Context) (pipeline.Appender, error) { return a, nil }
}

func failingOpener(err error) pipeline.OpenFunc {
	return func(context.Context) (pipeline.Appender, error) { return nil, err }
}

// --- helpers ---

var seoul = mustLoad("Asia/Seoul")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func obs(date string) domain.RawObservation {
	return domain.RawObservation{
		StationID:   "108",
		StationName: "서울",
		Date:        domain.Field(date),
		AvgTemp:     "20",
		MaxTemp:     "25",
		MinTemp:     "15",
		Precip:      "",
		Humidity:    "50",
		CloudCover:  "2",
	}
}

func newRunner(f pipeline.Fetcher, open pipeline.OpenFunc, clock clockwork.Clock, m *observability.Metrics) *pipeline.Runner {
	opts := domain.Options{ApplyTextCleaning: true, Location: seoul}
	return pipeline.New(f, open, opts, clock, discardLogger(), m)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, seoul)
}

// --- daily ---

func TestRunner_Yesterday(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"seoul morning", time.Date(2024, 6, 2, 9, 0, 0, 0, seoul), "2024-06-01"},
		{"utc evening is next day in seoul", time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC), "2024-06-01"},
		{"new year", time.Date(2025, 1, 1, 0, 5, 0, 0, seoul), "2024-12-31"},
		{"leap day", time.Date(2024, 3, 1, 12, 0, 0, 0, seoul), "2024-02-29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRunner(&mockFetcher{}, opener(&mockAppender{}), clockwork.NewFakeClockAt(tt.now), observability.NewMetricsForTesting())
			assert.Equal(t, tt.want, r.Yesterday().Format(time.DateOnly))
		})
	}
}

func TestRunner_RunDaily_AppendsOneRow(t *testing.T) {
	rec := obs("2024-06-01")
	rec.Phenomena = "{비}0310-0820."
	rec.Precip = "3.5"
	f := &mockFetcher{day: &rec}
	a := &mockAppender{}
	m := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 2, 9, 0, 0, 0, seoul))

	err := newRunner(f, opener(a), clock, m).RunDaily(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-06-01"}, f.days)
	require.Len(t, a.batches, 1)
	require.Len(t, a.batches[0], 1)
	got := a.batches[0][0]
	assert.Equal(t, "2024-06-01", got.Date)
	assert.Equal(t, domain.PrecipRain, got.PrecipType)
	assert.Equal(t, domain.TagRainy, got.PrimaryTag)
	assert.Equal(t, "비", got.SecondaryTags)
	assert.True(t, a.closed)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.ObservationsFetched), 0.0001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.RowsAppended), 0.0001)
	assert.InDelta(t, float64(clock.Now().Unix()), testutil.ToFloat64(m.LastSuccess), 0.0001)
}

func TestRunner_RunDaily_NoData(t *testing.T) {
	a := &mockAppender{}
	m := observability.NewMetricsForTesting()
	opened := false
	open := func(context.Context) (pipeline.Appender, error) {
		opened = true
		return a, nil
	}

	err := newRunner(&mockFetcher{}, open, clockwork.NewFakeClock(), m).RunDaily(context.Background())
	require.NoError(t, err)
	assert.False(t, opened, "sink must not be opened without data")
	assert.Empty(t, a.batches)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.EmptyUnits), 0.0001)
}

func TestRunner_RunDaily_FailuresAreNotFatal(t *testing.T) {
	rec := obs("2024-06-01")

	t.Run("fetch error", func(t *testing.T) {
		a := &mockAppender{}
		m := observability.NewMetricsForTesting()
		f := &mockFetcher{dayErr: errors.New("connection reset")}

		err := newRunner(f, opener(a), clockwork.NewFakeClock(), m).RunDaily(context.Background())
		require.NoError(t, err)
		assert.Empty(t, a.batches)
		assert.InDelta(t, 1.0, testutil.ToFloat64(m.FetchErrors), 0.0001)
	})

	t.Run("open error", func(t *testing.T) {
		m := observability.NewMetricsForTesting()
		f := &mockFetcher{day: &rec}

		err := newRunner(f, failingOpener(errors.New("bad credentials")), clockwork.NewFakeClock(), m).RunDaily(context.Background())
		require.NoError(t, err)
		assert.InDelta(t, 1.0, testutil.ToFloat64(m.AppendErrors), 0.0001)
		assert.InDelta(t, 0.0, testutil.ToFloat64(m.RowsAppended), 0.0001)
	})

	t.Run("append error", func(t *testing.T) {
		a := &mockAppender{err: errors.New("quota exceeded")}
		m := observability.NewMetricsForTesting()
		f := &mockFetcher{day: &rec}

		err := newRunner(f, opener(a), clockwork.NewFakeClock(), m).RunDaily(context.Background())
		require.NoError(t, err)
		assert.True(t, a.closed)
		assert.InDelta(t, 1.0, testutil.ToFloat64(m.AppendErrors), 0.0001)
	})
}

// --- backfill ---

func TestRunner_RunBackfill_AppendsEachChunk(t *testing.T) {
	f := &mockFetcher{byStart: map[string][]domain.RawObservation{
		"2023-11-20": {obs("2023-12-31")},
		"2024-01-01": {obs("2024-01-01"), obs("2024-06-01")},
		"2025-01-01": {obs("2025-02-01")},
	}}
	a := &mockAppender{}
	m := observability.NewMetricsForTesting()
	plan := pipeline.Plan{
		Start:       day(2023, 11, 20),
		End:         day(2025, 2, 5),
		Granularity: pipeline.Year,
	}

	err := newRunner(f, opener(a), clockwork.NewFakeClock(), m).RunBackfill(context.Background(), plan)
	require.NoError(t, err)

	want := []string{
		"2023-11-20~2023-12-31",
		"2024-01-01~2024-12-31",
		"2025-01-01~2025-02-05",
	}
	assert.Equal(t, want, f.calls())

	require.Len(t, a.batches, 3)
	assert.Len(t, a.batches[0], 1)
	assert.Len(t, a.batches[1], 2)
	assert.Equal(t, "2024-06-01", a.batches[1][1].Date)
	assert.True(t, a.closed)
	assert.InDelta(t, 4.0, testutil.ToFloat64(m.RowsAppended), 0.0001)
}

func TestRunner_RunBackfill_SkipsFailedAndEmptyChunks(t *testing.T) {
	f := &mockFetcher{
		byStart: map[string][]domain.RawObservation{
			"2022-01-01": {obs("2022-01-01")},
			"2024-01-01": {obs("2024-01-01")},
		},
		errStart: map[string]error{
			"2023-01-01": errors.New("kma API error 22: LIMITED_NUMBER_OF_SERVICE_REQUESTS_EXCEEDS_ERROR"),
		},
	}
	a := &mockAppender{}
	m := observability.NewMetricsForTesting()
	plan := pipeline.Plan{
		Start:       day(2021, 1, 1),
		End:         day(2024, 12, 31),
		Granularity: pipeline.Year,
	}

	err := newRunner(f, opener(a), clockwork.NewFakeClock(), m).RunBackfill(context.Background(), plan)
	require.NoError(t, err)

	assert.Len(t, f.calls(), 4)
	require.Len(t, a.batches, 2)
	assert.Equal(t, "2022-01-01", a.batches[0][0].Date)
	assert.Equal(t, "2024-01-01", a.batches[1][0].Date)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.FetchErrors), 0.0001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.EmptyUnits), 0.0001)
}

func TestRunner_RunBackfill_AppendErrorContinues(t *testing.T) {
	f := &mockFetcher{byStart: map[string][]domain.RawObservation{
		"2024-01-01": {obs("2024-01-01")},
		"2024-02-01": {obs("2024-02-01")},
	}}
	a := &mockAppender{err: errors.New("quota exceeded")}
	m := observability.NewMetricsForTesting()
	plan := pipeline.Plan{Start: day(2024, 1, 1), End: day(2024, 2, 29), Granularity: pipeline.Month}

	err := newRunner(f, opener(a), clockwork.NewFakeClock(), m).RunBackfill(context.Background(), plan)
	require.NoError(t, err)
	assert.Len(t, f.calls(), 2)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.AppendErrors), 0.0001)
}

func TestRunner_RunBackfill_OpenFailureIsFatal(t *testing.T) {
	f := &mockFetcher{}
	plan := pipeline.Plan{Start: day(2024, 1, 1), End: day(2024, 1, 3), Granularity: pipeline.Day}

	err := newRunner(f, failingOpener(errors.New("GOOGLE_SHEET_KEY is required")), clockwork.NewFakeClock(), observability.NewMetricsForTesting()).
		RunBackfill(context.Background(), plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open sink")
	assert.Empty(t, f.calls(), "no request may be issued before the sink is open")
}

func TestRunner_RunBackfill_InvalidPlan(t *testing.T) {
	plan := pipeline.Plan{Start: day(2024, 2, 1), End: day(2024, 1, 1), Granularity: pipeline.Year}

	err := newRunner(&mockFetcher{}, opener(&mockAppender{}), clockwork.NewFakeClock(), observability.NewMetricsForTesting()).
		RunBackfill(context.Background(), plan)
	require.Error(t, err)
}

func TestRunner_RunBackfill_PausesBetweenChunks(t *testing.T) {
	f := &mockFetcher{}
	clock := clockwork.NewFakeClock()
	plan := pipeline.Plan{
		Start:       day(2024, 1, 1),
		End:         day(2024, 1, 3),
		Granularity: pipeline.Day,
		Pause:       2 * time.Second,
	}
	r := newRunner(f, opener(&mockAppender{}), clock, observability.NewMetricsForTesting())

	done := make(chan error, 1)
	go func() { done <- r.RunBackfill(context.Background(), plan) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Two pauses for three chunks; each blocks until the clock advances.
	for i := 1; i <= 2; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		assert.Len(t, f.calls(), i)
		clock.Advance(2 * time.Second)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("backfill did not finish")
	}
	assert.Len(t, f.calls(), 3)
}

func TestRunner_RunBackfill_ContextCancelled(t *testing.T) {
	f := &mockFetcher{}
	plan := pipeline.Plan{Start: day(2024, 1, 1), End: day(2024, 12, 31), Granularity: pipeline.Month}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newRunner(f, opener(&mockAppender{}), clockwork.NewFakeClock(), observability.NewMetricsForTesting()).RunBackfill(ctx, plan)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.calls())
}
