// Package usage accumulates per-provider statistics for successful calls.
package usage

import (
	"sort"
	"sync"
)

// Snapshot is the aggregated usage of one provider.
type Snapshot struct {
	ProviderID       string  `json:"provider"`
	Requests         int64   `json:"requests"`
	Tokens           int64   `json:"tokens"`
	AvgLatencyMillis float64 `json:"avg_latency_ms"`
}

// entry guards one provider's counters. Providers never share a lock.
type entry struct {
	mu   sync.Mutex
	snap Snapshot
}

// Tracker is the single owner of provider usage statistics. It is safe for
// concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

// Record counts one successful call for a provider and folds its latency into
// the running mean.
func (t *Tracker) Record(providerID string, latencyMillis int64, tokens int) {
	e := t.getOrCreate(providerID)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.snap.Requests++
	e.snap.Tokens += int64(tokens)
	n := float64(e.snap.Requests)
	e.snap.AvgLatencyMillis = (e.snap.AvgLatencyMillis*(n-1) + float64(latencyMillis)) / n
}

// Get returns a copy of one provider's usage. The second value is false when
// the provider has no successful call yet.
func (t *Tracker) Get(providerID string) (Snapshot, bool) {
	t.mu.RLock()
	e, ok := t.entries[providerID]
	t.mu.RUnlock()
	if !ok {
		return Snapshot{ProviderID: providerID}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap, true
}

// Snapshot returns a copy of every provider's usage keyed by provider ID.
// Each provider is copied under its own lock, so no entry is ever observed
// half-updated.
func (t *Tracker) Snapshot() map[string]Snapshot {
	t.mu.RLock()
	entries := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	out := make(map[string]Snapshot, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		s := e.snap
		e.mu.Unlock()
		out[s.ProviderID] = s
	}
	return out
}

// List returns every provider's usage sorted by provider ID.
func (t *Tracker) List() []Snapshot {
	snap := t.Snapshot()
	out := make([]Snapshot, 0, len(snap))
	for _, s := range snap {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out
}

func (t *Tracker) getOrCreate(providerID string) *entry {
	t.mu.RLock()
	e, ok := t.entries[providerID]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[providerID]; ok {
		return e
	}
	e = &entry{snap: Snapshot{ProviderID: providerID}}
	t.entries[providerID] = e
	return e
}
