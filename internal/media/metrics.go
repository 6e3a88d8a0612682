package media

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "mediarelay"

var (
	// fetchDuration measures yt-dlp run time.
	// Labels:
	//   - status: success, extraction_error, unknown_error, canceled
	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Duration of media fetches in seconds",
			// Short clips finish in seconds, long videos with merging take minutes.
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "fetch",
			Name:      "total",
			Help:      "Total number of media fetches by status",
		},
		[]string{"status"},
	)

	// fetchInflight is the number of fetches currently holding a worker.
	fetchInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "fetch",
			Name:      "inflight",
			Help:      "Number of fetches currently running",
		},
	)

	fetchQueueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "fetch",
			Name:      "queue_wait_seconds",
			Help:      "Time a fetch waited for a free worker",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	// filesRemovedTotal counts files removed by request cleanup.
	filesRemovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cleanup",
			Name:      "files_removed_total",
			Help:      "Total number of downloaded files removed after handling",
		},
		[]string{"status"},
	)
)

const (
	fetchStatusSuccess    = "success"
	fetchStatusExtraction = "extraction_error"
	fetchStatusUnknown    = "unknown_error"
	fetchStatusCanceled   = "canceled"
)

func recordFetch(status string, durationSeconds float64) {
	fetchesTotal.WithLabelValues(status).Inc()
	if status != fetchStatusCanceled {
		fetchDuration.WithLabelValues(status).Observe(durationSeconds)
	}
}

func recordQueueWait(seconds float64) {
	fetchQueueWait.Observe(seconds)
}

func recordCleanup(status string) {
	filesRemovedTotal.WithLabelValues(status).Inc()
}
