package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the signaling server.
//
// Naming convention: namespace_subsystem_name
// - namespace: signaling (application-level grouping)
// - subsystem: websocket, room, protocol (feature-level grouping)
// - name: specific metric (connections_active, relays_total, etc.)
//
// Metric Types:
// - Gauge: current state (connections, rooms)
// - Counter: cumulative events (messages handled, relays, transitions)
// - Histogram: latency distributions (handler duration)

var (
	// ActiveConnections tracks the current number of live WebSocket sessions.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signaling",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of registered rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signaling",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of registered rooms",
	})

	// SignalingEvents counts every handled inbound message by verb and
	// outcome (ok, ignored, malformed, rejected).
	SignalingEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Subsystem: "protocol",
		Name:      "events_total",
		Help:      "Total inbound signaling messages handled",
	}, []string{"verb", "status"})

	// RelayedMessages counts verbatim relays between room members by verb.
	RelayedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Subsystem: "protocol",
		Name:      "relays_total",
		Help:      "Total messages relayed between room members",
	}, []string{"verb"})

	// StateTransitions counts room state machine transitions.
	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Subsystem: "room",
		Name:      "state_transitions_total",
		Help:      "Total room state transitions",
	}, []string{"from", "to"})

	// MessageProcessingDuration tracks coordinator handler latency.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signaling",
		Subsystem: "websocket",
		Name:      "message_processing_seconds",
		Help:      "Time spent handling inbound signaling messages",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
	}, []string{"verb"})

	// RateLimitExceeded counts requests rejected by the rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Subsystem: "http",
		Name:      "rate_limit_exceeded_total",
		Help:      "Total requests rejected by rate limiting",
	}, []string{"endpoint"})

	// GeneratedCodes counts room codes issued via generation, by outcome.
	GeneratedCodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Subsystem: "room",
		Name:      "generated_codes_total",
		Help:      "Total room code generation attempts",
	}, []string{"status"})
)

func IncConnection() {
	ActiveConnections.Inc()
}

func DecConnection() {
	ActiveConnections.Dec()
}
