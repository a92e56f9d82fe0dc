package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	ConversationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_conversations_started_total",
			Help: "Conversations created on first contact",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total direct messages persisted",
		},
	)

	MessagesMarkedRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_marked_read_total",
			Help: "Messages newly added to a reader set",
		},
	)

	// Codec health
	CipherFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_cipher_failures_total",
			Help: "Seal/open failures degraded to plaintext or placeholder",
		},
		[]string{"op"}, // "seal" or "open"
	)

	// Realtime
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_realtime_connections",
			Help: "Authenticated realtime connections on this instance",
		},
	)

	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_realtime_events_total",
			Help: "Realtime events by outcome",
		},
		[]string{"event", "outcome"}, // outcome: "delivered" or "dropped"
	)

	RealtimeHandshakeRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_realtime_handshake_rejected_total",
			Help: "Realtime connections refused for missing or invalid credentials",
		},
	)
)
