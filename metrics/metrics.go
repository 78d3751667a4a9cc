// Package metrics provides Prometheus instrumentation for the library.
// Collectors are process-wide and registered once at init; provider clients
// observe them around each call and stream.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts provider calls by mode and outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of provider requests.",
		},
		[]string{"provider", "mode", "status"}, // status: "ok" or "error"
	)

	// RequestDuration tracks end-to-end call latency in seconds. For
	// streamed calls this spans first byte to terminal event.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "End-to-end provider request latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "mode"},
	)

	// TokensTotal counts tokens reported by providers.
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total number of tokens consumed.",
		},
		[]string{"provider", "model", "direction"}, // direction: "input" or "output"
	)

	// StreamEventsTotal counts wire events dispatched during streaming.
	StreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_stream_events_total",
			Help: "Total number of wire events dispatched during streaming.",
		},
		[]string{"provider"},
	)

	// DroppedChunksTotal counts malformed stream chunks discarded by the
	// best-effort parse policy.
	DroppedChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_dropped_chunks_total",
			Help: "Total number of malformed stream chunks dropped.",
		},
		[]string{"provider"},
	)
)

// ObserveUsage records token counts for a completed call.
func ObserveUsage(provider, model string, input, output int) {
	if input > 0 {
		TokensTotal.WithLabelValues(provider, model, "input").Add(float64(input))
	}
	if output > 0 {
		TokensTotal.WithLabelValues(provider, model, "output").Add(float64(output))
	}
}
