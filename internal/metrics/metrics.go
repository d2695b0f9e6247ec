// Package metrics exposes Prometheus counters for the ingest and report pipelines.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every farecast metric.
const Namespace = "farecast"

// Metrics holds all prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	FetchFailures  *prometheus.CounterVec
	RecordsFetched *prometheus.CounterVec
	RowsWritten    *prometheus.CounterVec
	Reports        *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fetch_failures_total",
			Help:      "Upstream fetches that failed and degraded to an empty result",
		}, []string{"dataset"}),
		RecordsFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_fetched_total",
			Help:      "Raw records received from the upstream API",
		}, []string{"dataset"}),
		RowsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rows_written_total",
			Help:      "Rows persisted to the local database",
		}, []string{"table"}),
		Reports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reports_total",
			Help:      "Route reports produced, by outcome",
		}, []string{"outcome"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent per pipeline stage",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

// FetchFailed counts a failed fetch for dataset.
func (m *Metrics) FetchFailed(dataset string) {
	if m == nil {
		return
	}
	m.FetchFailures.WithLabelValues(dataset).Inc()
}

// Fetched counts n records received for dataset.
func (m *Metrics) Fetched(dataset string, n int) {
	if m == nil {
		return
	}
	m.RecordsFetched.WithLabelValues(dataset).Add(float64(n))
}

// Written counts n rows persisted to table.
func (m *Metrics) Written(table string, n int64) {
	if m == nil {
		return
	}
	m.RowsWritten.WithLabelValues(table).Add(float64(n))
}

// Report counts one report with the given outcome.
func (m *Metrics) Report(outcome string) {
	if m == nil {
		return
	}
	m.Reports.WithLabelValues(outcome).Inc()
}

// ObserveStage records the time elapsed since start for stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
