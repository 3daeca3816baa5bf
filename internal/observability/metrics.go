package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "kma_weather"

// Metrics holds the Prometheus counters, histograms, and gauges for a collection run.
type Metrics struct {
	ObservationsFetched prometheus.Counter
	RowsAppended        prometheus.Counter
	FetchErrors         prometheus.Counter
	AppendErrors        prometheus.Counter
	EmptyUnits          prometheus.Counter // chunk or day with no data

	UnitDuration prometheus.Histogram
	LastSuccess  prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates all run metrics on a dedicated registry so a job pushes
// only its own series.
func NewMetrics() *Metrics {
	m := newMetrics()
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		m.ObservationsFetched,
		m.RowsAppended,
		m.FetchErrors,
		m.AppendErrors,
		m.EmptyUnits,
		m.UnitDuration,
		m.LastSuccess,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ObservationsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_fetched_total",
			Help:      "Total daily observations returned by the KMA API.",
		}),
		RowsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_appended_total",
			Help:      "Total normalized rows written to the sink.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Total failed KMA API requests.",
		}),
		AppendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "append_errors_total",
			Help:      "Total failed sink appends.",
		}),
		EmptyUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_units_total",
			Help:      "Days or chunks for which the API returned no observations.",
		}),
		UnitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      "Duration of one fetch-normalize-append cycle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful append.",
		}),
	}
}

// Push sends the run's metrics to a Prometheus Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m.registry == nil {
		return fmt.Errorf("push metrics: registry not initialised")
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
