package metrics

import (
	"database/sql"
	"log"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "playtrack_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	timerOps *prometheus.CounterVec

	alertEvents *prometheus.CounterVec

	snapshotRequests *prometheus.CounterVec

	sweepRuns        *prometheus.CounterVec
	sweepLatency     *prometheus.HistogramVec
	sweepTimerErrors prometheus.Counter
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		timerOps = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "timer_operations_total",
				Help: "Total timer lifecycle operations by operation and result",
			},
			[]string{"operation", "result"},
		)

		alertEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alert lifecycle events by type",
			},
			[]string{"event"},
		)

		snapshotRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "snapshot_requests_total",
				Help: "Total timer snapshot requests by result",
			},
			[]string{"result"},
		)

		sweepRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sweep_runs_total",
				Help: "Total alert sweep runs by result",
			},
			[]string{"result"},
		)
		sweepLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "sweep_latency_seconds",
				Help:    "Alert sweep latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		sweepTimerErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "sweep_timer_errors_total",
				Help: "Total timers skipped during a sweep due to errors",
			},
		)

		prometheus.MustRegister(
			timerOps,
			alertEvents,
			snapshotRequests,
			sweepRuns,
			sweepLatency,
			sweepTimerErrors,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncTimerOp increments timer operation counters.
func IncTimerOp(operation, result string) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if timerOps != nil {
		timerOps.WithLabelValues(operation, result).Inc()
	}
}

// IncAlertEvent increments alert lifecycle counters.
func IncAlertEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alertEvents != nil {
		alertEvents.WithLabelValues(event).Inc()
	}
}

// IncSnapshotRequest increments snapshot request counters.
func IncSnapshotRequest(result string) {
	if result == "" {
		result = "changed"
	}
	if snapshotRequests != nil {
		snapshotRequests.WithLabelValues(result).Inc()
	}
}

// ObserveSweep records sweep duration and result.
func ObserveSweep(result string, seconds float64) {
	if result == "" {
		result = resultSuccess
	}
	if seconds < 0 {
		seconds = 0
	}
	if sweepRuns != nil {
		sweepRuns.WithLabelValues(result).Inc()
	}
	if sweepLatency != nil {
		sweepLatency.WithLabelValues(result).Observe(seconds)
	}
}

// IncSweepTimerError increments the per-timer sweep error counter.
func IncSweepTimerError() {
	if sweepTimerErrors != nil {
		sweepTimerErrors.Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
