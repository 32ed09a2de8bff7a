package queues

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for queue operations. All
// instruments are registered on a private registry so tests can build
// services side by side without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	puts      *prometheus.CounterVec
	dequeues  *prometheus.CounterVec
	acks      *prometheus.CounterVec
	releases  *prometheus.CounterVec
	expiries  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	available *prometheus.GaugeVec
	inFlight  *prometheus.GaugeVec
}

// NewMetrics builds and registers the queue instruments.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		puts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lkq",
			Name:      "puts_total",
			Help:      "Accepted put operations.",
		}, []string{"queue", "policy"}),
		dequeues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lkq",
			Name:      "dequeues_total",
			Help:      "Successful checkouts, by operation (get or take).",
		}, []string{"queue", "op"}),
		acks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lkq",
			Name:      "acks_total",
			Help:      "Acknowledged leases.",
		}, []string{"queue"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lkq",
			Name:      "releases_total",
			Help:      "Manually released leases.",
		}, []string{"queue"}),
		expiries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lkq",
			Name:      "lease_expiries_total",
			Help:      "Leases requeued by the reaper after their timeout elapsed.",
		}, []string{"queue"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lkq",
			Name:      "operation_failures_total",
			Help:      "Failed operations, by operation and error kind.",
		}, []string{"queue", "op", "kind"}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lkq",
			Name:      "available_items",
			Help:      "Items currently available for checkout.",
		}, []string{"queue"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lkq",
			Name:      "inflight_items",
			Help:      "Items currently held under a lease.",
		}, []string{"queue"}),
	}
	m.registry.MustRegister(
		m.puts, m.dequeues, m.acks, m.releases, m.expiries, m.failures,
		m.available, m.inFlight,
	)
	return m
}

// Registry exposes the gatherer for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
