// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeDispatched     = "dispatched"
	OutcomeDenied         = "denied"
	OutcomeIdentityFailed = "identity_failed"
	OutcomeInvalid        = "invalid"
)

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	outcomes    *prometheus.CounterVec
	denials     *prometheus.CounterVec
	provisioned prometheus.Counter
	swept       *prometheus.CounterVec
}

// New registers the pipeline collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingress_inbound_units_total",
			Help: "Inbound units by terminal pipeline outcome.",
		}, []string{"outcome"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingress_admission_denials_total",
			Help: "Admission denials by reason and tier.",
		}, []string{"reason", "tier"}),
		provisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingress_accounts_provisioned_total",
			Help: "Accounts created on first contact.",
		}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingress_retention_swept_total",
			Help: "Idle entries removed by the retention sweep.",
		}, []string{"kind"}),
	}
	registry.MustRegister(
		m.outcomes,
		m.denials,
		m.provisioned,
		m.swept,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOutcome counts one terminal pipeline outcome.
func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

// ObserveDenial counts one admission denial. tier is empty for cooldowns.
func (m *Metrics) ObserveDenial(reason, tier string) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(reason, tier).Inc()
}

// ObserveProvisioned counts one new account.
func (m *Metrics) ObserveProvisioned() {
	if m == nil {
		return
	}
	m.provisioned.Inc()
}

// ObserveSwept counts entries removed by the retention sweep.
func (m *Metrics) ObserveSwept(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.WithLabelValues(kind).Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
