package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/artpar/pushdock/internal/core/domain"
)

// Metrics counts deploy and injection outcomes.
type Metrics struct {
	deploys    *prometheus.CounterVec
	injections *prometheus.CounterVec
}

// NewMetrics creates and registers the engine's collectors. reg may be nil
// to skip registration (useful in tests that only exercise the pipeline).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deploys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pushdock",
			Name:      "deploys_total",
			Help:      "Count of per-target deploy attempts by outcome",
		}, []string{"outcome"}),
		injections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pushdock",
			Name:      "secret_injections_total",
			Help:      "Count of secret injection outcomes",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.deploys, m.injections)
	}
	return m
}

func (m *Metrics) recordDeploy(outcome domain.DeployOutcome) {
	if m == nil {
		return
	}
	m.deploys.With(prometheus.Labels{"outcome": string(outcome)}).Inc()
}

func (m *Metrics) recordInjection(outcome domain.InjectionOutcome) {
	if m == nil || outcome == "" {
		return
	}
	m.injections.With(prometheus.Labels{"outcome": string(outcome)}).Inc()
}
