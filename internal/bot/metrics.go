package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики для Bot
//
// Метрики позволяют отслеживать:
// - Количество запросов в обработке
// - Время обработки ссылки (end-to-end, от сообщения до ответа)
// - Исходы запросов по режиму
// - Игнорируемые апдейты

const metricsNamespace = "mediarelay"

// Reasons for ignored updates.
const (
	ignoreNoMessage = "no_message"
	ignoreNoText    = "no_text"
	ignoreNoURL     = "no_url"
	ignoreCommand   = "unknown_command"
)

var (
	// activeRequests показывает количество запросов, которые сейчас обрабатываются.
	activeRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "bot",
			Name:      "active_requests",
			Help:      "Current number of link requests being handled",
		},
	)

	// requestDuration измеряет end-to-end время обработки ссылки.
	// Labels:
	//   - mode: audio, video
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "bot",
			Name:      "request_duration_seconds",
			Help:      "End-to-end duration of link handling in seconds",
			// Скачивание и загрузка в Telegram: от секунды до десяти минут
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 180, 300, 600},
		},
		[]string{"mode"},
	)

	// requestsTotal считает обработанные ссылки.
	// Labels:
	//   - mode: audio, video
	//   - outcome: delivered, extraction_error, too_large, ...
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "bot",
			Name:      "requests_total",
			Help:      "Total number of handled link requests",
		},
		[]string{"mode", "outcome"},
	)

	updatesIgnoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "bot",
			Name:      "updates_ignored_total",
			Help:      "Total number of updates that carried nothing to handle",
		},
		[]string{"reason"},
	)

	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "bot",
			Name:      "commands_total",
			Help:      "Total number of handled bot commands",
		},
		[]string{"command"},
	)
)

// IncActiveRequests увеличивает счётчик запросов в обработке на 1.
func IncActiveRequests() {
	activeRequests.Inc()
}

// DecActiveRequests уменьшает счётчик запросов в обработке на 1.
func DecActiveRequests() {
	activeRequests.Dec()
}

// RecordRequest записывает исход и длительность обработки ссылки.
func RecordRequest(mode, outcome string, durationSeconds float64) {
	requestDuration.WithLabelValues(mode).Observe(durationSeconds)
	requestsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordIgnoredUpdate counts an update dropped before any work started.
func RecordIgnoredUpdate(reason string) {
	updatesIgnoredTotal.WithLabelValues(reason).Inc()
}

func recordCommand(command string) {
	commandsTotal.WithLabelValues(command).Inc()
}
