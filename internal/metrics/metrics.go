// Package metrics exposes Prometheus instrumentation for the dialogue core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storylab",
			Subsystem: "dialogue",
			Name:      "sessions_started_total",
			Help:      "Sessions opened over the WebSocket gateway",
		},
		[]string{"mode"},
	)

	SessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storylab",
			Subsystem: "dialogue",
			Name:      "sessions_finished_total",
			Help:      "Sessions that reached a terminal state",
		},
		[]string{"outcome"},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storylab",
			Subsystem: "gateway",
			Name:      "active_connections",
			Help:      "Currently open dialogue WebSocket connections",
		},
	)

	completionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storylab",
			Subsystem: "chat",
			Name:      "completion_duration_seconds",
			Help:      "Text completion call duration",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	ImageAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storylab",
			Subsystem: "illustration",
			Name:      "attempts_total",
			Help:      "Individual image generation attempts by outcome",
		},
		[]string{"outcome"},
	)

	ImageBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storylab",
			Subsystem: "illustration",
			Name:      "batches_total",
			Help:      "Image batches by final result size",
		},
		[]string{"result"},
	)
)

// ObserveCompletion records one completion call.
func ObserveCompletion(d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	completionDuration.WithLabelValues(status).Observe(d.Seconds())
}
