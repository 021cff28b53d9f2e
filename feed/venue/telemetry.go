package venue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pricemesh/pricemesh/feed/types"
)

var (
	websocketMessageCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricemesh",
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Number of ticker messages parsed per venue websocket.",
		},
		[]string{"venue"},
	)

	websocketErrorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricemesh",
			Subsystem: "websocket",
			Name:      "errors_total",
			Help:      "Number of malformed or schema-violating frames per venue websocket.",
		},
		[]string{"venue"},
	)

	websocketReconnectCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricemesh",
			Subsystem: "websocket",
			Name:      "reconnects_total",
			Help:      "Number of reconnect attempts per venue websocket.",
		},
		[]string{"venue"},
	)
)

// telemetryWebsocketMessage gives a standard way to add the
// `pricemesh_websocket_messages_total{venue="x"}` metric.
func telemetryWebsocketMessage(n types.VenueName) {
	websocketMessageCounter.WithLabelValues(n.String()).Inc()
}

// telemetryWebsocketError gives a standard way to add the
// `pricemesh_websocket_errors_total{venue="x"}` metric.
func telemetryWebsocketError(n types.VenueName) {
	websocketErrorCounter.WithLabelValues(n.String()).Inc()
}

// telemetryWebsocketReconnect gives a standard way to add the
// `pricemesh_websocket_reconnects_total{venue="x"}` metric.
func telemetryWebsocketReconnect(n types.VenueName) {
	websocketReconnectCounter.WithLabelValues(n.String()).Inc()
}
