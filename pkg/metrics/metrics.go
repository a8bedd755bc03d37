// Package metrics holds the Prometheus collectors of the relay. Collectors
// are usable before registration; MustRegister exposes them on the default
// registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "smsrelay"

var (
	RelayAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_attempts_total",
			Help:      "Total number of commands sent to a device connection.",
		},
	)

	RelayOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_outcomes_total",
			Help:      "Total number of relayed commands by terminal status.",
		},
		[]string{"kind", "status"},
	)

	RelayDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_duration_seconds",
			Help:      "Duration of relayed commands including candidate fallback.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	Connections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of registered links by classification.",
		},
		[]string{"kind"},
	)

	IngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_total",
			Help:      "Total number of inbound events by path and result.",
		},
		[]string{"path", "result"},
	)

	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Total number of rejected links and requests.",
		},
		[]string{"boundary"},
	)
)

// MustRegister registers all collectors with the default registry.
func MustRegister() {
	prometheus.MustRegister(
		RelayAttemptsTotal,
		RelayOutcomesTotal,
		RelayDurationSeconds,
		Connections,
		IngestedTotal,
		AuthFailuresTotal,
	)
}
