package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/enterprise-skillhub/skillhub/internal/providers"
	"github.com/enterprise-skillhub/skillhub/internal/router"
	"github.com/enterprise-skillhub/skillhub/internal/usage"
)

type callMessage struct {
	Role    router.Role `json:"role" validate:"required,oneof=system user assistant"`
	Content string      `json:"content"`
}

// CallRequest is the body of POST /api/v1/llm/call. MaxRetries may exceed the
// candidate count to wrap around, up to 100 attempts.
type CallRequest struct {
	Messages   []callMessage `json:"messages" validate:"required,min=1,dive"`
	Model      string        `json:"model,omitempty"`
	Provider   string        `json:"provider,omitempty"`
	MaxRetries int           `json:"max_retries,omitempty" validate:"lte=100"`
}

// LLMCallHandler routes one call through the Engine.
func LLMCallHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CallRequest
		if err := decodeJSON(r, &req, false); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		opts := router.CallOptions{Model: req.Model, MaxRetries: req.MaxRetries}
		if req.Provider != "" {
			kind, err := router.ParseKind(req.Provider)
			if err != nil {
				jsonError(w, err.Error(), http.StatusBadRequest)
				return
			}
			opts.Provider = kind
		}

		msgs := make([]router.Message, len(req.Messages))
		for i, m := range req.Messages {
			msgs[i] = router.Message{Role: m.Role, Content: m.Content}
		}

		ctx := providers.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		if d.CallTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.CallTimeout)
			defer cancel()
		}

		res, err := d.Engine.Call(ctx, msgs, opts)
		outcome, code := callOutcome(err)
		recordCall(ctx, d, outcome, err)
		if err != nil {
			if code == http.StatusInternalServerError {
				slog.Error("llm call failed", slog.String("error", err.Error()))
			}
			jsonError(w, err.Error(), code)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// UsageResponse is the body of GET /api/v1/llm/usage.
type UsageResponse struct {
	Providers map[string]usage.Snapshot `json:"providers"`
}

func LLMUsageHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, UsageResponse{Providers: d.Engine.UsageStats()})
	}
}

// ProvidersResponse lists the dispatch order.
type ProvidersResponse struct {
	Providers []router.ProviderInfo `json:"providers"`
	Count     int                   `json:"count"`
}

func LLMProvidersHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		infos := d.Engine.AvailableProviders()
		if infos == nil {
			infos = []router.ProviderInfo{}
		}
		writeJSON(w, http.StatusOK, ProvidersResponse{Providers: infos, Count: len(infos)})
	}
}
