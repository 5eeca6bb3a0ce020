// Package stats keeps rolling windows of provider attempts for the admin
// dashboard. Unlike the usage tracker it sees failures as well as successes.
package stats

import (
	"sort"
	"sync"
	"time"
)

// Snapshot is one recorded provider attempt.
type Snapshot struct {
	Timestamp  time.Time
	ProviderID string
	Model      string
	LatencyMs  float64
	Tokens     int
	Success    bool
	ErrorClass string
}

// Window defines a named time window for aggregation.
type Window struct {
	Name     string
	Duration time.Duration
}

// DefaultWindows returns the standard set of rolling windows.
func DefaultWindows() []Window {
	return []Window{
		{Name: "1m", Duration: time.Minute},
		{Name: "5m", Duration: 5 * time.Minute},
		{Name: "1h", Duration: time.Hour},
		{Name: "24h", Duration: 24 * time.Hour},
	}
}

// Aggregate holds computed stats for a time window.
type Aggregate struct {
	Window       string         `json:"window"`
	ProviderID   string         `json:"provider,omitempty"`
	Model        string         `json:"model,omitempty"`
	Attempts     int            `json:"attempts"`
	Failures     int            `json:"failures"`
	FailureRate  float64        `json:"failure_rate"`
	AvgLatencyMs float64        `json:"avg_latency_ms"`
	P95LatencyMs float64        `json:"p95_latency_ms"`
	Tokens       int            `json:"tokens"`
	ErrorClasses map[string]int `json:"error_classes,omitempty"`
}

// Collector maintains rolling snapshots for dashboard aggregation.
type Collector struct {
	mu        sync.RWMutex
	snapshots []Snapshot
	maxAge    time.Duration
	windows   []Window

	now func() time.Time
}

// NewCollector creates a new stats collector.
func NewCollector() *Collector {
	return &Collector{
		windows: DefaultWindows(),
		maxAge:  25 * time.Hour, // slightly more than the largest window
		now:     time.Now,
	}
}

// Record adds a new snapshot. Snapshots are assumed to arrive in time order.
func (c *Collector) Record(s Snapshot) {
	if s.Timestamp.IsZero() {
		s.Timestamp = c.now().UTC()
	}
	c.mu.Lock()
	c.snapshots = append(c.snapshots, s)
	c.mu.Unlock()
}

// Prune removes snapshots older than maxAge.
func (c *Collector) Prune() {
	cutoff := c.now().Add(-c.maxAge)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(cutoff)
}

// pruneLocked removes expired snapshots. Caller must hold c.mu.
func (c *Collector) pruneLocked(cutoff time.Time) {
	i := 0
	for i < len(c.snapshots) && c.snapshots[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		c.snapshots = c.snapshots[i:]
	}
}

// snapshotsAfterPrune prunes and copies under one write lock.
func (c *Collector) snapshotsAfterPrune() []Snapshot {
	cutoff := c.now().Add(-c.maxAge)
	c.mu.Lock()
	c.pruneLocked(cutoff)
	cp := make([]Snapshot, len(c.snapshots))
	copy(cp, c.snapshots)
	c.mu.Unlock()
	return cp
}

// SummaryByProvider returns per-provider aggregates keyed by window name.
func (c *Collector) SummaryByProvider() map[string][]Aggregate {
	return c.summarize(func(s Snapshot) (string, string) { return s.ProviderID, "" })
}

// SummaryByModel returns per-(provider, model) aggregates keyed by window name.
func (c *Collector) SummaryByModel() map[string][]Aggregate {
	return c.summarize(func(s Snapshot) (string, string) { return s.ProviderID, s.Model })
}

type groupKey struct{ provider, model string }

func (c *Collector) summarize(key func(Snapshot) (string, string)) map[string][]Aggregate {
	snapshots := c.snapshotsAfterPrune()
	now := c.now()
	result := make(map[string][]Aggregate)

	for _, w := range c.windows {
		cutoff := now.Add(-w.Duration)
		groups := make(map[groupKey][]Snapshot)
		for _, s := range snapshots {
			if s.Timestamp.After(cutoff) {
				p, m := key(s)
				k := groupKey{p, m}
				groups[k] = append(groups[k], s)
			}
		}
		aggs := make([]Aggregate, 0, len(groups))
		for k, snaps := range groups {
			aggs = append(aggs, computeAggregate(w.Name, k.provider, k.model, snaps))
		}
		sort.Slice(aggs, func(i, j int) bool {
			if aggs[i].ProviderID != aggs[j].ProviderID {
				return aggs[i].ProviderID < aggs[j].ProviderID
			}
			return aggs[i].Model < aggs[j].Model
		})
		if len(aggs) > 0 {
			result[w.Name] = aggs
		}
	}
	return result
}

// Global returns aggregate stats across all providers, one per non-empty window.
func (c *Collector) Global() []Aggregate {
	snapshots := c.snapshotsAfterPrune()
	now := c.now()
	result := []Aggregate{}

	for _, w := range c.windows {
		cutoff := now.Add(-w.Duration)
		var snaps []Snapshot
		for _, s := range snapshots {
			if s.Timestamp.After(cutoff) {
				snaps = append(snaps, s)
			}
		}
		if len(snaps) > 0 {
			result = append(result, computeAggregate(w.Name, "", "", snaps))
		}
	}
	return result
}

// SnapshotCount returns the total number of stored snapshots.
func (c *Collector) SnapshotCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snapshots)
}

func computeAggregate(window, providerID, model string, snaps []Snapshot) Aggregate {
	a := Aggregate{
		Window:     window,
		ProviderID: providerID,
		Model:      model,
		Attempts:   len(snaps),
	}

	var totalLatency float64
	latencies := make([]float64, 0, len(snaps))
	for _, s := range snaps {
		totalLatency += s.LatencyMs
		latencies = append(latencies, s.LatencyMs)
		a.Tokens += s.Tokens
		if !s.Success {
			a.Failures++
			if s.ErrorClass != "" {
				if a.ErrorClasses == nil {
					a.ErrorClasses = make(map[string]int)
				}
				a.ErrorClasses[s.ErrorClass]++
			}
		}
	}

	if a.Attempts > 0 {
		a.AvgLatencyMs = totalLatency / float64(a.Attempts)
		a.FailureRate = float64(a.Failures) / float64(a.Attempts)
	}

	sort.Float64s(latencies)
	if len(latencies) > 0 {
		idx := int(float64(len(latencies)) * 0.95)
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		a.P95LatencyMs = latencies[idx]
	}
	return a
}
