package mailqueue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wishlane"

var (
	queueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mailqueue",
			Name:      "queue_size",
			Help:      "Number of email queue items by status",
		},
		[]string{"status"},
	)

	emailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mailqueue",
			Name:      "processed_total",
			Help:      "Total queue items processed by outcome",
		},
		[]string{"outcome"},
	)

	sendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mailqueue",
			Name:      "send_duration_seconds",
			Help:      "Time to deliver one queue email",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	queueFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mailqueue",
			Name:      "fetched_total",
			Help:      "Total queue items fetched for processing (before send attempt)",
		},
	)
)

func recordEmailProcessed(outcome string) {
	emailsProcessed.WithLabelValues(outcome).Inc()
}

func recordSendDuration(duration time.Duration) {
	sendDuration.Observe(duration.Seconds())
}

func recordQueueFetched(count int) {
	queueFetched.Add(float64(count))
}

// RecordStats updates queue size metrics.
func RecordStats(stats *Stats) {
	queueSize.WithLabelValues("pending").Set(float64(stats.Pending))
	queueSize.WithLabelValues("processing").Set(float64(stats.Processing))
	queueSize.WithLabelValues("sent").Set(float64(stats.Sent))
	queueSize.WithLabelValues("failed").Set(float64(stats.Failed))
}
