package router

import "sort"

// CandidateList is the enabled subset of the configured providers in dispatch
// order. It is never mutated after BuildCandidates returns.
type CandidateList []ProviderConfig

// BuildCandidates filters out disabled providers and orders the rest by
// ascending priority. Equal priorities keep their registration order. An empty
// result is valid; the engine reports it as a configuration error at call time.
func BuildCandidates(configs []ProviderConfig) CandidateList {
	out := make(CandidateList, 0, len(configs))
	for _, c := range configs {
		if !c.Enabled {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// At returns the candidate for the given attempt, wrapping past the end.
func (l CandidateList) At(attempt int) ProviderConfig {
	return l[attempt%len(l)]
}

// Infos returns the public description of every candidate in order.
func (l CandidateList) Infos() []ProviderInfo {
	infos := make([]ProviderInfo, len(l))
	for i, c := range l {
		infos[i] = ProviderInfo{Provider: c.ProviderID, Model: c.Model, Priority: c.Priority}
	}
	return infos
}
