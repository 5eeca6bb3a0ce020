package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/enterprise-skillhub/skillhub/internal/events"
	"github.com/enterprise-skillhub/skillhub/internal/health"
	"github.com/enterprise-skillhub/skillhub/internal/idempotency"
	"github.com/enterprise-skillhub/skillhub/internal/metrics"
	"github.com/enterprise-skillhub/skillhub/internal/router"
	"github.com/enterprise-skillhub/skillhub/internal/session"
	"github.com/enterprise-skillhub/skillhub/internal/stats"
)

// Dependencies are the collaborators the HTTP layer serves. Engine and
// Sessions are required; the observability sinks are skipped when nil.
type Dependencies struct {
	Engine   *router.Engine
	Sessions session.Store

	Metrics     *metrics.Registry
	EventBus    *events.Bus
	Stats       *stats.Collector
	Health      *health.Tracker
	Idempotency *idempotency.Cache

	// CallTimeout caps one /api/v1/llm/call request. Zero means no cap.
	CallTimeout time.Duration

	Version   string
	StartedAt time.Time
}

func MountRoutes(r chi.Router, d Dependencies) {
	if d.StartedAt.IsZero() {
		d.StartedAt = time.Now()
	}

	r.Get("/healthz", HealthHandler(d))

	replay := func(next http.Handler) http.Handler { return next }
	if d.Idempotency != nil {
		replay = idempotency.Middleware(d.Idempotency)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", SessionsInboxHandler(d))
			r.With(replay).Post("/", SessionsCreateHandler(d))
			r.Get("/stats", SessionsStatsHandler(d))
			r.Post("/archive", SessionsArchiveHandler(d))
			r.Get("/{id}", SessionGetHandler(d))
			r.Put("/{id}/status", SessionStatusHandler(d))
			r.Post("/{id}/messages", SessionMessageHandler(d))
		})
		r.Route("/llm", func(r chi.Router) {
			r.With(replay).Post("/call", LLMCallHandler(d))
			r.Get("/usage", LLMUsageHandler(d))
			r.Get("/providers", LLMProvidersHandler(d))
		})
	})

	r.Route("/admin/v1", func(r chi.Router) {
		r.Get("/stats", StatsHandler(d))
		r.Get("/health", ProviderHealthHandler(d))
		if d.EventBus != nil {
			r.Get("/events", SSEHandler(d.EventBus))
		}
	})

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
	Providers     int       `json:"providers"`
}

// HealthHandler reports unhealthy when no provider can be dispatched to.
func HealthHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		now := time.Now().UTC()
		resp := HealthResponse{
			Status:        "ok",
			Version:       d.Version,
			UptimeSeconds: now.Sub(d.StartedAt).Seconds(),
			Timestamp:     now,
			Providers:     len(d.Engine.AvailableProviders()),
		}
		code := http.StatusOK
		if resp.Providers == 0 {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
