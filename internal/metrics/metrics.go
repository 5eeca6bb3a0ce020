package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	AttemptsTotal  *prometheus.CounterVec
	AttemptLatency *prometheus.HistogramVec
	CallsTotal     *prometheus.CounterVec
	TokensTotal    *prometheus.CounterVec
	SessionsTotal  *prometheus.CounterVec
	ProviderHealth *prometheus.GaugeVec
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillhub_provider_attempts_total",
			Help: "Provider attempts by outcome",
		}, []string{"provider", "model", "status", "error_class"}),
		AttemptLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skillhub_provider_attempt_latency_ms",
			Help:    "Provider attempt latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}, []string{"provider", "status"}),
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillhub_llm_calls_total",
			Help: "Routed LLM calls by final outcome",
		}, []string{"outcome"}),
		TokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillhub_tokens_total",
			Help: "Tokens reported by successful calls",
		}, []string{"provider"}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillhub_session_transitions_total",
			Help: "Session creations and status changes",
		}, []string{"status"}),
		ProviderHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "skillhub_provider_health",
			Help: "Provider health: 1 healthy, 0.5 degraded, 0 down",
		}, []string{"provider"}),
	}
	reg.MustRegister(m.AttemptsTotal, m.AttemptLatency, m.CallsTotal, m.TokensTotal, m.SessionsTotal, m.ProviderHealth)
	return m
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
