package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	telemetrySourceGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pricemesh",
			Subsystem: "feed",
			Name:      "live_sources",
			Help:      "Number of venues accepted by the last aggregation.",
		},
	)

	telemetryPriceGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pricemesh",
			Subsystem: "feed",
			Name:      "price",
			Help:      "Latest aggregated reference price.",
		},
	)

	telemetrySpreadHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pricemesh",
			Subsystem: "feed",
			Name:      "spread_pct",
			Help:      "Cross-venue sample stdev over median, in percent.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.3, 0.5, 1},
		},
	)

	telemetryDegradedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pricemesh",
			Subsystem: "feed",
			Name:      "degraded_total",
			Help:      "Aggregations aborted for lack of live sources.",
		},
	)
)
