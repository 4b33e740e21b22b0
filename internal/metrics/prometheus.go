package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Polling metrics
	PollAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypewatch_poll_attempts_total",
			Help: "Total number of upstream poll attempts",
		},
		[]string{"endpoint", "status"}, // status: success|error|superseded
	)

	PollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hypewatch_poll_duration_seconds",
			Help:    "Upstream poll duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// Alert stream metrics
	AlertEventsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hypewatch_alert_events_received_total",
			Help: "Total number of decoded alert events",
		},
	)

	AlertEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hypewatch_alert_events_dropped_total",
			Help: "Total number of malformed alert payloads dropped",
		},
	)

	StreamReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hypewatch_stream_reconnects_total",
			Help: "Total number of alert stream reopen attempts",
		},
	)

	// Chat metrics
	ChatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypewatch_chat_requests_total",
			Help: "Total number of chat completion requests",
		},
		[]string{"status"}, // status: success|invalid|config_error|provider_error
	)

	ChatStreamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hypewatch_chat_stream_duration_seconds",
			Help:    "Duration of chat completion streams in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	// Snapshot metrics
	SnapshotsSaved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hypewatch_snapshots_saved_total",
			Help: "Total number of trending snapshots captured",
		},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(PollAttempts)
	prometheus.MustRegister(PollDuration)
	prometheus.MustRegister(AlertEventsReceived)
	prometheus.MustRegister(AlertEventsDropped)
	prometheus.MustRegister(StreamReconnects)
	prometheus.MustRegister(ChatRequests)
	prometheus.MustRegister(ChatStreamDuration)
	prometheus.MustRegister(SnapshotsSaved)
}

// Handler returns the HTTP handler serving the metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
