package broadcast

import "github.com/prometheus/client_golang/prometheus"

var (
	subscribersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_subscribers",
			Help: "Current number of event stream subscribers.",
		},
	)

	// eventsTotal counts relayed events by job status.
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_events_total",
			Help: "Total number of engine events relayed to subscribers.",
		},
		[]string{"status"},
	)

	malformedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_malformed_events_total",
			Help: "Engine events dropped because they could not be parsed.",
		},
	)

	droppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_dropped_subscribers_total",
			Help: "Subscribers disconnected because their buffer overflowed.",
		},
	)

	reconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_upstream_reconnects_total",
			Help: "Reconnect attempts to the engine event stream.",
		},
	)
)

func init() {
	prometheus.MustRegister(subscribersGauge, eventsTotal, malformedTotal, droppedTotal, reconnectsTotal)
}
