package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "syncpad", Name: "connections_active", Help: "Number of currently connected realtime clients."},
	)
	EventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "syncpad", Name: "events_processed_total", Help: "Realtime events processed by the hub, by event type."},
		[]string{"type"},
	)
	BroadcastsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "syncpad", Name: "broadcasts_sent_total", Help: "Outbound frames fanned out, by delivery scope."},
		[]string{"scope"},
	)
	MirrorFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "syncpad", Name: "mirror_failures_total", Help: "Durable-mirror write-throughs that failed."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "syncpad", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "syncpad", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(ConnectionsActive)
	reg.MustRegister(EventsProcessed)
	reg.MustRegister(BroadcastsSent)
	reg.MustRegister(MirrorFailures)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
