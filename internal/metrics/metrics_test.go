package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsCanBeCollected(t *testing.T) {
	r := New()

	r.AttemptsTotal.WithLabelValues("openai", "gpt-4o", "error", "transient").Inc()
	r.AttemptLatency.WithLabelValues("openai", "error").Observe(150)
	r.CallsTotal.WithLabelValues("ok").Inc()
	r.TokensTotal.WithLabelValues("anthropic").Add(42)
	r.SessionsTotal.WithLabelValues("pending").Inc()
	r.ProviderHealth.WithLabelValues("openai").Set(0.5)

	mfs, err := r.reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering metrics: %v", err)
	}
	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"skillhub_provider_attempts_total",
		"skillhub_provider_attempt_latency_ms",
		"skillhub_llm_calls_total",
		"skillhub_tokens_total",
		"skillhub_session_transitions_total",
		"skillhub_provider_health",
	} {
		if !names[want] {
			t.Errorf("metric %s not gathered", want)
		}
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.CallsTotal.WithLabelValues("all_failed").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `skillhub_llm_calls_total{outcome="all_failed"} 1`) {
		t.Errorf("metrics output missing call counter:\n%s", body)
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	// Each registry owns its own prometheus registry, so two can coexist.
	a, b := New(), New()
	a.CallsTotal.WithLabelValues("ok").Inc()
	mfs, _ := b.reg.Gather()
	for _, mf := range mfs {
		if mf.GetName() == "skillhub_llm_calls_total" && len(mf.GetMetric()) > 0 {
			t.Error("second registry should not see the first registry's samples")
		}
	}
}
