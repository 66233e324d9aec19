// Package metrics exposes Prometheus instrumentation for the orchestrator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "praxis"

// Collector holds the orchestrator's Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	webhookEvents *prometheus.CounterVec
	gradingJobs   *prometheus.CounterVec
	leasesInUse   prometheus.Gauge
	claims        *prometheus.CounterVec
}

// New creates and registers the collector on its own registry.
func New() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Inbound webhook events by intake outcome.",
		}, []string{"outcome"}),
		gradingJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grading",
			Name:      "jobs_total",
			Help:      "Grading workflow starts by result.",
		}, []string{"result"}),
		leasesInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "leases_in_use",
			Help:      "Workspace resources currently leased.",
		}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignments",
			Name:      "claims_total",
			Help:      "Task claim attempts by result.",
		}, []string{"result"}),
	}

	registry.MustRegister(c.webhookEvents, c.gradingJobs, c.leasesInUse, c.claims)
	return c
}

// ObserveWebhookEvent counts an intake outcome.
func (c *Collector) ObserveWebhookEvent(outcome string) {
	c.webhookEvents.WithLabelValues(outcome).Inc()
}

// ObserveGradingStart counts a grading workflow start result.
func (c *Collector) ObserveGradingStart(result string) {
	c.gradingJobs.WithLabelValues(result).Inc()
}

// SetLeasesInUse records the current lease count.
func (c *Collector) SetLeasesInUse(n int) {
	c.leasesInUse.Set(float64(n))
}

// ObserveClaim counts a task claim attempt result.
func (c *Collector) ObserveClaim(result string) {
	c.claims.WithLabelValues(result).Inc()
}

// Handler serves the registry over HTTP.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
