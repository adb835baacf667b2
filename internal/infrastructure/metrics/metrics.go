package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "helpdesk"

var (
	// Routing decisions per inbound message, partitioned by chosen action
	RoutingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Routing decisions taken for inbound chat messages",
		},
		[]string{"action"},
	)

	// Failed calls to the AI provider, partitioned by operation
	AIFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_failures_total",
			Help:      "Failed AI provider calls",
		},
		[]string{"operation"},
	)

	// AI provider latency in seconds, partitioned by operation
	AIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "AI provider call latencies in seconds",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"operation"},
	)

	// Events handed to the bus, partitioned by event type
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Real-time events published to ticket subscribers",
		},
		[]string{"type"},
	)

	// Subscribers closed because their buffer filled up
	SlowSubscribersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_subscribers_dropped_total",
			Help:      "Subscriptions closed because the consumer fell behind",
		},
	)

	// Live subscriptions across all tickets
	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Open real-time subscriptions",
		},
	)

	// Tickets with at least one subscriber
	ActiveTopics = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_ticket_topics",
			Help:      "Tickets that currently have subscribers",
		},
	)

	// Tickets created, partitioned by category
	TicketsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_created_total",
			Help:      "Tickets created",
		},
		[]string{"category"},
	)

	// Technical tickets rejected because nobody could take them
	AssignmentFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignment_failures_total",
			Help:      "Technical tickets rejected for lack of a technician",
		},
	)

	// Notification jobs that could not be queued or sent
	NotificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notification jobs that failed to queue or send",
		},
	)
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Open WebSocket connections
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open WebSocket connections",
		},
	)
)

// Requests turned away by a rate limiter, by limiter name
var RateLimited = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_requests_total",
		Help:      "Requests rejected by a rate limiter",
	},
	[]string{"limiter"},
)
