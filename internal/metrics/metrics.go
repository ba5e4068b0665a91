package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "druma_chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "druma_chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "druma_chat_rooms_created_total",
			Help: "Total conversation rooms created",
		},
	)

	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "druma_chat_messages_posted_total",
			Help: "Total messages posted",
		},
		[]string{"kind"}, // "text" or "system"
	)

	OptimisticRollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "druma_chat_optimistic_rollbacks_total",
			Help: "Optimistic messages rolled back after a failed persist",
		},
	)

	SubscriptionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "druma_chat_subscription_errors_total",
			Help: "Push feed subscriptions that failed to open",
		},
	)

	StreamConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "druma_chat_stream_connections",
			Help: "Open websocket stream connections",
		},
	)
)
