package httpapi

import (
	"net/http"

	"github.com/enterprise-skillhub/skillhub/internal/health"
	"github.com/enterprise-skillhub/skillhub/internal/stats"
)

// StatsResponse is returned by /admin/v1/stats. Unlike the usage endpoint it
// counts failed attempts too.
type StatsResponse struct {
	Global     []stats.Aggregate            `json:"global"`
	ByModel    map[string][]stats.Aggregate `json:"by_model"`
	ByProvider map[string][]stats.Aggregate `json:"by_provider"`
}

func StatsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatsResponse{
			Global:     []stats.Aggregate{},
			ByModel:    map[string][]stats.Aggregate{},
			ByProvider: map[string][]stats.Aggregate{},
		}
		if d.Stats != nil {
			resp.Global = d.Stats.Global()
			resp.ByModel = d.Stats.SummaryByModel()
			resp.ByProvider = d.Stats.SummaryByProvider()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ProviderHealthHandler lists the derived health of every provider that has
// seen an attempt.
func ProviderHealthHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := []health.Stats{}
		if d.Health != nil {
			out = d.Health.All()
		}
		writeJSON(w, http.StatusOK, map[string]any{"providers": out})
	}
}
