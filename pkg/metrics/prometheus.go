package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	datesBuilt   *prometheus.CounterVec
	datesSkipped *prometheus.CounterVec
	buildErrors  *prometheus.CounterVec
	rowsWritten  *prometheus.CounterVec
	unknownSides *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		datesBuilt: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_build_dates_total",
				Help: "Date partitions built per dataset",
			},
			[]string{"dataset"},
		),
		datesSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_build_dates_skipped_total",
				Help: "Date partitions skipped as already covered",
			},
			[]string{"dataset"},
		),
		buildErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_build_errors_total",
				Help: "Per-date build failures",
			},
			[]string{"dataset"},
		),
		rowsWritten: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_build_rows_written_total",
				Help: "Derived rows published per dataset",
			},
			[]string{"dataset"},
		),
		unknownSides: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_build_unknown_sides_total",
				Help: "Trades with an unrecognized aggressor-side code",
			},
			[]string{"dataset"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backtest_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordDateBuilt records one successfully published date partition.
func (r *Recorder) RecordDateBuilt(dataset string) {
	r.datesBuilt.WithLabelValues(dataset).Inc()
}

// RecordDateSkipped records an idempotent no-op date.
func (r *Recorder) RecordDateSkipped(dataset string) {
	r.datesSkipped.WithLabelValues(dataset).Inc()
}

// RecordBuildError records a failed date build.
func (r *Recorder) RecordBuildError(dataset string) {
	r.buildErrors.WithLabelValues(dataset).Inc()
}

// RecordRowsWritten records published row counts.
func (r *Recorder) RecordRowsWritten(dataset string, rows int64) {
	r.rowsWritten.WithLabelValues(dataset).Add(float64(rows))
}

// RecordUnknownSides records trades whose side code fell outside the known set.
func (r *Recorder) RecordUnknownSides(dataset string, n int64) {
	r.unknownSides.WithLabelValues(dataset).Add(float64(n))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
