// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fasdesk_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fasdesk_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ResponderDuration tracks how long the analysis services take to answer.
	ResponderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fasdesk_responder_duration_seconds",
			Help:    "Time to produce a system answer, by scenario category",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"category", "status"},
	)

	// ResponsesPending tracks answers that are still being produced.
	ResponsesPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fasdesk_responses_pending",
			Help: "Number of response procedures in flight",
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fasdesk_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// EventsPublished tracks store events forwarded to NATS.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fasdesk_events_published_total",
			Help: "Store events published to NATS",
		},
		[]string{"type", "status"},
	)

	// NATSStreamMessages tracks messages in NATS stream.
	NATSStreamMessages = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fasdesk_nats_stream_messages",
			Help: "Number of messages in NATS stream",
		},
		[]string{"stream"},
	)

	// ConversationsTotal tracks conversations created.
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fasdesk_conversations_total",
			Help: "Total conversations created",
		},
		[]string{"category"},
	)

	// MessagesTotal tracks messages appended to conversations.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fasdesk_messages_total",
			Help: "Total messages appended",
		},
		[]string{"category", "sender"},
	)

	// UploadsTotal tracks attachment uploads.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fasdesk_uploads_total",
			Help: "Total attachment uploads",
		},
		[]string{"store", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordResponse records the outcome of one response procedure.
func RecordResponse(category, status string, duration float64) {
	ResponderDuration.WithLabelValues(category, status).Observe(duration)
}

// RecordMessage counts an appended message.
func RecordMessage(category, sender string) {
	MessagesTotal.WithLabelValues(category, sender).Inc()
}

// RecordConversation counts a created conversation.
func RecordConversation(category string) {
	ConversationsTotal.WithLabelValues(category).Inc()
}

// RecordUpload counts an attachment upload.
func RecordUpload(store, status string) {
	UploadsTotal.WithLabelValues(store, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
