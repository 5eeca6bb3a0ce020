package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/enterprise-skillhub/skillhub/internal/events"
	"github.com/enterprise-skillhub/skillhub/internal/health"
	"github.com/enterprise-skillhub/skillhub/internal/metrics"
	"github.com/enterprise-skillhub/skillhub/internal/providers"
	"github.com/enterprise-skillhub/skillhub/internal/router"
	"github.com/enterprise-skillhub/skillhub/internal/stats"
)

// jsonError writes {"error": msg} with the given status code.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Observer fans settled attempts out to the metrics registry, event bus,
// stats collector and health tracker. Nil sinks are skipped.
type Observer struct {
	Metrics  *metrics.Registry
	EventBus *events.Bus
	Stats    *stats.Collector
	Health   *health.Tracker
}

var _ router.Observer = (*Observer)(nil)

func (o *Observer) ObserveAttempt(ctx context.Context, a router.Attempt) {
	provider := string(a.ProviderID)
	status := "ok"
	if a.Err != nil {
		status = "error"
	}

	if o.Metrics != nil {
		o.Metrics.AttemptsTotal.WithLabelValues(provider, a.Model, status, string(a.Class)).Inc()
		o.Metrics.AttemptLatency.WithLabelValues(provider, status).Observe(float64(a.LatencyMillis))
		if a.Err == nil {
			o.Metrics.TokensTotal.WithLabelValues(provider).Add(float64(a.Tokens))
		}
	}

	if o.EventBus != nil {
		e := events.Event{
			ProviderID: provider,
			Model:      a.Model,
			Attempt:    a.Index + 1,
			LatencyMs:  a.LatencyMillis,
			RequestID:  providers.GetRequestID(ctx),
		}
		if a.Err != nil {
			e.Type = events.EventAttemptFailed
			e.ErrorClass = string(a.Class)
			e.ErrorMsg = a.Err.Error()
		} else {
			e.Type = events.EventCallSucceeded
			e.Tokens = a.Tokens
		}
		o.EventBus.Publish(e)
	}

	if o.Stats != nil {
		o.Stats.Record(stats.Snapshot{
			ProviderID: provider,
			Model:      a.Model,
			LatencyMs:  float64(a.LatencyMillis),
			Tokens:     a.Tokens,
			Success:    a.Err == nil,
			ErrorClass: string(a.Class),
		})
	}

	if o.Health != nil {
		if a.Err != nil {
			o.Health.RecordFailure(provider, a.Err.Error())
		} else {
			o.Health.RecordSuccess(provider)
		}
	}
}

// HealthGauge returns a health.Tracker update hook that mirrors provider
// state into the skillhub_provider_health gauge.
func HealthGauge(m *metrics.Registry) func(string, health.State) {
	return func(provider string, s health.State) {
		v := 1.0
		switch s {
		case health.StateDegraded:
			v = 0.5
		case health.StateDown:
			v = 0
		}
		m.ProviderHealth.WithLabelValues(provider).Set(v)
	}
}

// callOutcome maps a Call error to its metric label and HTTP status.
func callOutcome(err error) (outcome string, code int) {
	var all *router.AllProvidersFailedError
	switch {
	case err == nil:
		return "ok", http.StatusOK
	case errors.Is(err, router.ErrNoProviders):
		return "no_providers", http.StatusServiceUnavailable
	case errors.As(err, &all):
		return "all_failed", http.StatusBadGateway
	case errors.Is(err, router.ErrCancelled):
		return "cancelled", http.StatusGatewayTimeout
	default:
		return "error", http.StatusInternalServerError
	}
}

// recordCall counts the final outcome of a routed call and publishes a
// call_failed event when it did not succeed.
func recordCall(ctx context.Context, d Dependencies, outcome string, err error) {
	if d.Metrics != nil {
		d.Metrics.CallsTotal.WithLabelValues(outcome).Inc()
	}
	if err == nil || d.EventBus == nil {
		return
	}
	d.EventBus.Publish(events.Event{
		Type:       events.EventCallFailed,
		ErrorClass: outcome,
		ErrorMsg:   err.Error(),
		RequestID:  providers.GetRequestID(ctx),
	})
}

// recordSession counts a session transition and publishes the matching event.
func recordSession(d Dependencies, typ events.EventType, id, status string) {
	if d.Metrics != nil {
		d.Metrics.SessionsTotal.WithLabelValues(status).Inc()
	}
	if d.EventBus != nil {
		d.EventBus.Publish(events.Event{Type: typ, SessionID: id, Status: status})
	}
}

func recordArchive(d Dependencies, n int) {
	if d.Metrics != nil && n > 0 {
		d.Metrics.SessionsTotal.WithLabelValues("archived").Add(float64(n))
	}
	if d.EventBus != nil {
		d.EventBus.Publish(events.Event{Type: events.EventSessionsArchived, Count: n})
	}
	slog.Info("sessions archived", slog.Int("count", n))
}
