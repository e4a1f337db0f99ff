// Package metrics exposes CascadeFlow's pull-style Prometheus metrics. Names
// are stable wire-level identifiers per the external interface contract:
// cf_requests_total, cf_draft_accepted_total, cf_cost_usd_total,
// cf_latency_ms. The core never imports this package directly — the
// cascade executor records outcomes through the narrow Recorder interface
// (internal/cascade) so that core packages stay framework-free; only the
// server wiring in internal/app passes a concrete *Registry into that interface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns a private Prometheus registry and the CascadeFlow counters
// and histograms registered against it.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	DraftAcceptedTotal *prometheus.CounterVec
	CostUSDTotal       *prometheus.CounterVec
	LatencyMs          *prometheus.HistogramVec
	RateLimitedTotal   prometheus.Counter
	ProviderHealthState *prometheus.GaugeVec
}

// New builds and registers the metric set.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cf_requests_total",
			Help: "Total cascade requests processed, by routing strategy and domain",
		}, []string{"strategy", "domain"}),
		DraftAcceptedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cf_draft_accepted_total",
			Help: "Total drafts accepted without escalation to a verifier, by domain",
		}, []string{"domain"}),
		CostUSDTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cf_cost_usd_total",
			Help: "Total estimated USD cost, by model",
		}, []string{"model"}),
		LatencyMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cf_latency_ms",
			Help:    "Stage latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}, []string{"stage"}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cf_rate_limited_total",
			Help: "Total rate-limit rejections: inbound HTTP requests refused by the per-client limiter plus provider calls answered with a rate-limit error",
		}),
		ProviderHealthState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cf_provider_health_state",
			Help: "Current provider health state (0=down, 1=degraded, 2=healthy)",
		}, []string{"provider"}),
	}
	reg.MustRegister(m.RequestsTotal, m.DraftAcceptedTotal, m.CostUSDTotal, m.LatencyMs, m.RateLimitedTotal, m.ProviderHealthState)
	return m
}

// Handler exposes the registry over the pull-style /metrics endpoint; only
// cmd/cascadeflowd mounts it.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// RecordRequest satisfies cascade.Recorder.
func (m *Registry) RecordRequest(strategy, domain string) {
	m.RequestsTotal.WithLabelValues(strategy, domain).Inc()
}

// RecordDraftAccepted satisfies cascade.Recorder.
func (m *Registry) RecordDraftAccepted(domain string) {
	m.DraftAcceptedTotal.WithLabelValues(domain).Inc()
}

// RecordCost satisfies cascade.Recorder.
func (m *Registry) RecordCost(model string, usd float64) {
	if usd <= 0 {
		return
	}
	m.CostUSDTotal.WithLabelValues(model).Add(usd)
}

// RecordLatency satisfies cascade.Recorder. stage is one of draft|verify|total.
func (m *Registry) RecordLatency(stage string, ms float64) {
	m.LatencyMs.WithLabelValues(stage).Observe(ms)
}

// RecordRateLimited satisfies cascade.Recorder.
func (m *Registry) RecordRateLimited() {
	m.RateLimitedTotal.Inc()
}
