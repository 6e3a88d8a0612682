package janitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "mediarelay"

const (
	statusSuccess = "success"
	statusError   = "error"
)

var (
	janitorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "janitor",
			Name:      "runs_total",
			Help:      "Total number of janitor sweeps",
		},
		[]string{"status"},
	)

	janitorRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "janitor",
			Name:      "run_duration_seconds",
			Help:      "Duration of janitor sweeps in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// janitorFilesRemoved считает удалённые «осиротевшие» загрузки.
	janitorFilesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "janitor",
			Name:      "files_removed_total",
			Help:      "Total number of stale download files removed",
		},
	)

	janitorBytesFreed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "janitor",
			Name:      "bytes_freed_total",
			Help:      "Total bytes freed by removing stale download files",
		},
	)
)

func recordRun(status string, durationSeconds float64) {
	janitorRunsTotal.WithLabelValues(status).Inc()
	janitorRunDuration.Observe(durationSeconds)
}

func recordSweep(files int, bytes int64) {
	janitorFilesRemoved.Add(float64(files))
	janitorBytesFreed.Add(float64(bytes))
}
