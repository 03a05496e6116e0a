package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	pendingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "liftcoach",
		Subsystem: "queue",
		Name:      "pending_entries",
		Help:      "Number of actions waiting in the local offline queue.",
	})
	lastDeliveredGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "liftcoach",
		Subsystem: "queue",
		Name:      "last_delivery_timestamp_seconds",
		Help:      "Unix timestamp of the most recent action confirmed by the remote log.",
	})
	onlineGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "liftcoach",
		Subsystem: "connectivity",
		Name:      "online",
		Help:      "1 while the remote log is considered reachable, 0 otherwise.",
	})
)

func init() {
	prometheus.MustRegister(pendingGauge, lastDeliveredGauge, onlineGauge)
}

// RecordPending updates the queue depth gauge. It is registered as a queue observer.
func RecordPending(pending int) {
	pendingGauge.Set(float64(pending))
}

// RecordDelivered updates the delivery watermark gauge.
func RecordDelivered(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastDeliveredGauge.Set(float64(ts.Unix()))
}

// RecordOnline mirrors the connectivity state.
func RecordOnline(online bool) {
	if online {
		onlineGauge.Set(1)
		return
	}
	onlineGauge.Set(0)
}
