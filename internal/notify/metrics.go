package notify

import "github.com/prometheus/client_golang/prometheus"

var (
	toastsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toasts_enqueued_total",
			Help: "Toasts shown, by severity.",
		},
		[]string{"severity"},
	)

	// toastsDismissed counts removals; reason is "manual" or "expired".
	toastsDismissed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toasts_dismissed_total",
			Help: "Toasts removed, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(toastsEnqueued, toastsDismissed)
}
