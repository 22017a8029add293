// Package metrics tracks analysis pipeline counters and exposes them
// in Prometheus format.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Run counters
	RunsStarted   atomic.Uint64
	RunsCompleted atomic.Uint64
	RunsFailed    atomic.Uint64

	// Pipeline volume counters
	FramesScanned   atomic.Uint64
	PointsEmitted   atomic.Uint64
	WarningsEmitted atomic.Uint64

	// Watch loop counters
	WatchScans atomic.Uint64

	// Last run tracking
	AnalyzeDurationMs atomic.Uint64 // Duration of the last run in ms
	LastRunUnix       atomic.Uint64 // Completion time of the last successful run

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	// Register Prometheus gauges
	m.registerPrometheusMetrics()

	return m
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	// Run metrics
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "lineage_runs_started_total",
			Help: "Total analysis runs started",
		},
		func() float64 { return float64(m.RunsStarted.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "lineage_runs_completed_total",
			Help: "Total analysis runs completed successfully",
		},
		func() float64 { return float64(m.RunsCompleted.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "lineage_runs_failed_total",
			Help: "Total analysis runs that failed",
		},
		func() float64 { return float64(m.RunsFailed.Load()) },
	))

	// Volume metrics
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "lineage_frames_scanned_total",
			Help: "Total mask frames scanned",
		},
		func() float64 { return float64(m.FramesScanned.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "lineage_points_emitted_total",
			Help: "Total trajectory points emitted",
		},
		func() float64 { return float64(m.PointsEmitted.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "lineage_warnings_total",
			Help: "Total analysis warnings emitted",
		},
		func() float64 { return float64(m.WarningsEmitted.Load()) },
	))

	// Watch loop metrics
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "lineage_watch_scans_total",
			Help: "Total dataset directory scans by the watch loop",
		},
		func() float64 { return float64(m.WatchScans.Load()) },
	))

	// Last run metrics
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "lineage_analyze_duration_ms",
			Help: "Duration of the last analysis run in milliseconds",
		},
		func() float64 { return float64(m.AnalyzeDurationMs.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "lineage_last_run_timestamp_seconds",
			Help: "Unix time of the last successful analysis run",
		},
		func() float64 { return float64(m.LastRunUnix.Load()) },
	))
}

// UpdateAnalyzeDuration records the duration of the latest analysis run.
func (m *Metrics) UpdateAnalyzeDuration(d time.Duration) {
	m.AnalyzeDurationMs.Store(uint64(d.Milliseconds()))
}

// MarkRunCompleted records a successful run finishing at now.
func (m *Metrics) MarkRunCompleted(now time.Time) {
	m.RunsCompleted.Add(1)
	m.LastRunUnix.Store(uint64(now.Unix()))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
