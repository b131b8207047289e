package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veldtlabs/curriculumd/internal/workflow"
)

// Metrics holds the process's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Workflows counts completed workflows by terminal state.
	Workflows *prometheus.CounterVec
	// Regenerations counts compliance-driven regeneration rounds.
	Regenerations prometheus.Counter
	// ProviderRetries counts transient-failure retries against the
	// generation provider.
	ProviderRetries prometheus.Counter
	// IndexRebuilds counts index rebuilds.
	IndexRebuilds prometheus.Counter
}

// NewMetrics creates and registers the collectors on a private
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Workflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curriculumd_workflows_total",
			Help: "Completed workflows by terminal state.",
		}, []string{"status"}),
		Regenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curriculumd_regenerations_total",
			Help: "Compliance-driven artifact regeneration rounds.",
		}),
		ProviderRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curriculumd_provider_retries_total",
			Help: "Transient-failure retries against the generation provider.",
		}),
		IndexRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curriculumd_index_rebuilds_total",
			Help: "Vector index rebuilds.",
		}),
	}

	registry.MustRegister(
		m.Workflows,
		m.Regenerations,
		m.ProviderRetries,
		m.IndexRebuilds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveWorkflow records a finished workflow.
func (m *Metrics) ObserveWorkflow(envelope workflow.ResultEnvelope) {
	m.Workflows.WithLabelValues(string(envelope.Status)).Inc()
	m.Regenerations.Add(float64(envelope.Regenerations))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
