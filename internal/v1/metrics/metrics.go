package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the Jeopardy room coordinator.
//
// Naming convention: namespace_subsystem_name
// - namespace: jeopardy (application-level grouping)
// - subsystem: room, websocket, buzzer, generator, persistence, circuit_breaker,
//   rate_limit, redis (feature-level grouping)
// - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, participants)
// - Counter: Cumulative events (messages processed, errors)
// - Histogram: Latency distributions (processing time)

var (
	// ActiveWebSocketConnections tracks the current number of active WebSocket connections (Gauge - current state)
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "jeopardy",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of active rooms (Gauge - current state)
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "jeopardy",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomParticipants tracks the number of participants in each room (GaugeVec with room_code label)
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "jeopardy",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of participants in each room",
	}, []string{"room_code"})

	// WebsocketEvents tracks the total number of WebSocket events processed (CounterVec - cumulative)
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jeopardy",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// MessageProcessingDuration tracks the time spent processing WebSocket messages (HistogramVec - latency distribution)
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jeopardy",
		Subsystem: "websocket",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing WebSocket messages",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// BuzzesTotal tracks every buzz submission the arbiter has processed, labeled
	// by outcome (winner, late, duplicate, rejected).
	BuzzesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jeopardy",
		Subsystem: "buzzer",
		Name:      "buzzes_total",
		Help:      "Total buzz submissions processed, labeled by outcome",
	}, []string{"outcome"})

	// TieResolutionsTotal tracks buzzer tie-window resolutions.
	TieResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jeopardy",
		Subsystem: "buzzer",
		Name:      "tie_resolutions_total",
		Help:      "Total number of tie-window resolutions, labeled by tie size bucket",
	}, []string{"tie_size"})

	// RoundTransitionsTotal tracks round/board transitions (e.g. single -> double -> final).
	RoundTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jeopardy",
		Subsystem: "room",
		Name:      "round_transitions_total",
		Help:      "Total round transitions, labeled by target round",
	}, []string{"to_round"})

	// GeneratorRequestDuration tracks latency of calls to the AI content generator.
	GeneratorRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jeopardy",
		Subsystem: "generator",
		Name:      "request_duration_seconds",
		Help:      "Duration of generator adapter HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	// GeneratorRequestsTotal tracks the total number of generator adapter requests.
	GeneratorRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jeopardy",
		Subsystem: "generator",
		Name:      "requests_total",
		Help:      "Total generator adapter requests, labeled by outcome",
	}, []string{"outcome"})

	// PersistenceOperationDuration tracks latency of persistence adapter operations.
	PersistenceOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jeopardy",
		Subsystem: "persistence",
		Name:      "operation_duration_seconds",
		Help:      "Duration of persistence adapter operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "backend"})

	// PersistenceOperationsTotal tracks the total number of persistence operations.
	PersistenceOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jeopardy",
		Subsystem: "persistence",
		Name:      "operations_total",
		Help:      "Total persistence adapter operations, labeled by operation/backend/status",
	}, []string{"operation", "backend", "status"})

	// CircuitBreakerState tracks the current state of a circuit breaker (GaugeVec)
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "jeopardy",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks the total number of requests rejected by the circuit breaker
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jeopardy",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks the total number of requests that exceeded the rate limit
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jeopardy",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks the total number of requests checked against the rate limiter
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jeopardy",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})

	// RedisOperationsTotal tracks the total number of Redis operations (CounterVec)
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jeopardy",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis operations",
	}, []string{"operation", "status"})

	// RedisOperationDuration tracks the duration of Redis operations (HistogramVec)
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jeopardy",
		Subsystem: "redis",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Redis operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
