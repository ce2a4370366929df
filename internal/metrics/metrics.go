package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DBQueryDuration measures how long our database queries take.
// We use a label 'operation' to distinguish between repository calls.
var DBQueryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "db_query_duration_seconds",
		Help: "Duration of database queries in seconds",
		// Buckets tailored for fast reads and potentially slower background refreshes
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
	},
	[]string{"operation"},
)

// OutboxPublishedTotal counts outbox rows successfully delivered to the
// broker, labeled by event_type.
var OutboxPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox rows successfully published to the broker",
	},
	[]string{"event_type"},
)

// OutboxRetriedTotal counts publish attempts that failed and were
// scheduled for another try.
var OutboxRetriedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "outbox_retried_total",
		Help: "Outbox publish attempts that failed and were retried",
	},
	[]string{"event_type"},
)

// OutboxDeadLetteredTotal counts outbox rows retired to the dead-letter
// queue after exhausting their retry budget.
var OutboxDeadLetteredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "outbox_dead_lettered_total",
		Help: "Outbox rows moved to the dead-letter queue",
	},
	[]string{"event_type"},
)

// ConsumerEventsTotal counts broker deliveries processed, labeled by event
// type and outcome ("applied", "error", "unroutable").
var ConsumerEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "consumer_events_total",
		Help: "Broker deliveries processed by the consumer loop",
	},
	[]string{"event_type", "outcome"},
)

// HTTPRequestDuration measures handler latency, labeled by route and
// status code.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route", "status"},
)
