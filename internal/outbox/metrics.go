package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftcoach",
		Subsystem: "outbox",
		Name:      "entries_delivered_total",
		Help:      "Number of actions confirmed delivered to the remote log, labeled by action.",
	}, []string{"action"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftcoach",
		Subsystem: "outbox",
		Name:      "entries_failed_total",
		Help:      "Number of delivery attempts that failed, labeled by action and failure kind.",
	}, []string{"action", "kind"})

	enqueuedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftcoach",
		Subsystem: "outbox",
		Name:      "entries_enqueued_total",
		Help:      "Number of actions parked in the local queue, labeled by why.",
	}, []string{"reason"})

	flushSkippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftcoach",
		Subsystem: "outbox",
		Name:      "flush_skipped_total",
		Help:      "Number of flush triggers ignored, labeled by why.",
	}, []string{"reason"})

	flushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "liftcoach",
		Subsystem: "outbox",
		Name:      "flush_duration_seconds",
		Help:      "Duration of flush cycles that found pending entries.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	notifyFailedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftcoach",
		Subsystem: "outbox",
		Name:      "delivery_notifications_failed_total",
		Help:      "Number of delivered sets whose downstream notification could not be published.",
	})

	notifyDroppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftcoach",
		Subsystem: "outbox",
		Name:      "delivery_notifications_dropped_total",
		Help:      "Number of delivery notifications dropped because the publish buffer was full.",
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, enqueuedCounter, flushSkippedCounter, flushDuration, notifyFailedCounter, notifyDroppedCounter)
}
