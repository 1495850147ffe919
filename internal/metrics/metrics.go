// Package metrics provides Prometheus instrumentation for the detector.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Phase labels.
const (
	PhaseBatch  = "batch"
	PhaseStream = "stream"
)

var (
	// EventsApplied counts events applied to the network by phase and kind.
	EventsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "anomalywatch",
			Name:      "events_applied_total",
			Help:      "Events applied to the network by phase and event type.",
		},
		[]string{"phase", "kind"},
	)

	// EventsRejected counts lines skipped under the skip error policy.
	EventsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "anomalywatch",
			Name:      "events_rejected_total",
			Help:      "Event lines rejected by phase and reason.",
		},
		[]string{"phase", "reason"},
	)

	// PurchasesFlagged counts anomalous streaming purchases.
	PurchasesFlagged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "anomalywatch",
			Name:      "purchases_flagged_total",
			Help:      "Streaming purchases flagged as anomalous.",
		},
	)

	// NetworkUsers tracks registered users.
	NetworkUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "anomalywatch",
			Name:      "network_users",
			Help:      "Users currently registered in the network.",
		},
	)

	// ReplayDuration observes how long each replay phase took.
	ReplayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "anomalywatch",
			Name:      "replay_duration_seconds",
			Help:      "Wall time spent replaying a batch or stream chunk.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
		},
		[]string{"phase"},
	)
)

func init() {
	prometheus.MustRegister(
		EventsApplied,
		EventsRejected,
		PurchasesFlagged,
		NetworkUsers,
		ReplayDuration,
	)
}

// Handler returns the Prometheus scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
