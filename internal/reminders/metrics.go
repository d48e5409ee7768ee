package reminders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wishlane"

var (
	remindersChecked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "checked_total",
			Help:      "Total events examined per reminder window",
		},
		[]string{"window"},
	)

	remindersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "created_total",
			Help:      "Total reminders dispatched per window",
		},
		[]string{"window"},
	)
)

func recordReminderChecked(window string) {
	remindersChecked.WithLabelValues(window).Inc()
}

func recordReminderCreated(window string) {
	remindersCreated.WithLabelValues(window).Inc()
}
