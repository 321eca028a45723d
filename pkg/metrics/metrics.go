// Package metrics exposes Prometheus collectors for the hub's probe and
// agent-session surfaces, grounded on r3e-network-service_layer's
// infrastructure/metrics.Metrics pattern (one struct of collectors
// registered against a prometheus.Registerer, plus Record* helpers).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the hub exposes on /metrics.
type Metrics struct {
	ProbesTotal    *prometheus.CounterVec
	ProbeDuration  *prometheus.HistogramVec
	AgentsOnline   prometheus.Gauge
	AgentsDegraded prometheus.Gauge
	RunbooksTotal  *prometheus.CounterVec
	AuditEntries   prometheus.Counter
}

// New builds a Metrics instance and registers its collectors against
// registerer. Pass prometheus.DefaultRegisterer in production; tests should
// pass a fresh prometheus.NewRegistry() to avoid duplicate-registration
// panics across test runs.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProbesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonde_hub_probes_total",
				Help: "Total number of probe executions by probe name and outcome status.",
			},
			[]string{"probe", "status"},
		),
		ProbeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sonde_hub_probe_duration_seconds",
				Help:    "Probe execution duration in seconds.",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"probe"},
		),
		AgentsOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sonde_hub_agents_online",
			Help: "Current number of agents with an active dispatcher session.",
		}),
		AgentsDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sonde_hub_agents_degraded",
			Help: "Current number of agents that have missed one heartbeat.",
		}),
		RunbooksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sonde_hub_runbooks_total",
				Help: "Total number of runbook runs by category.",
			},
			[]string{"category"},
		),
		AuditEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sonde_hub_audit_entries_total",
			Help: "Total number of audit ledger rows appended.",
		}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.ProbesTotal,
			m.ProbeDuration,
			m.AgentsOnline,
			m.AgentsDegraded,
			m.RunbooksTotal,
			m.AuditEntries,
		)
	}

	return m
}

// RecordProbe records the outcome and duration of one probe execution.
func (m *Metrics) RecordProbe(probe, status string, d time.Duration) {
	m.ProbesTotal.WithLabelValues(probe, status).Inc()
	m.ProbeDuration.WithLabelValues(probe).Observe(d.Seconds())
}

// RecordRunbook records one runbook run for category.
func (m *Metrics) RecordRunbook(category string) {
	m.RunbooksTotal.WithLabelValues(category).Inc()
}

// RecordAuditAppend records one audit ledger append.
func (m *Metrics) RecordAuditAppend() {
	m.AuditEntries.Inc()
}

// SetAgentCounts sets the online/degraded agent gauges from the
// dispatcher's current session snapshot.
func (m *Metrics) SetAgentCounts(online, degraded int) {
	m.AgentsOnline.Set(float64(online))
	m.AgentsDegraded.Set(float64(degraded))
}
