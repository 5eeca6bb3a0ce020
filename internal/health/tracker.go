// Package health derives a per-provider health state from settled attempts.
// The state is reported to operators only; dispatch order never consults it.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/enterprise-skillhub/skillhub/internal/events"
)

type State string

const (
	StateHealthy  State = "healthy"
	StateDegraded State = "degraded"
	StateDown     State = "down"
)

// Stats is the health record of one provider.
type Stats struct {
	ProviderID    string    `json:"provider"`
	State         State     `json:"state"`
	Attempts      int64     `json:"attempts"`
	Failures      int64     `json:"failures"`
	ConsecFails   int       `json:"consecutive_failures"`
	ErrorRate     float64   `json:"error_rate"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorAt   time.Time `json:"last_error_at,omitempty"`
	LastSuccessAt time.Time `json:"last_success_at,omitempty"`
}

// Config sets the consecutive-failure thresholds for each state.
type Config struct {
	DegradedAfter int
	DownAfter     int
}

func DefaultConfig() Config {
	return Config{DegradedAfter: 2, DownAfter: 5}
}

type Tracker struct {
	cfg      Config
	bus      *events.Bus
	onUpdate func(providerID string, state State)
	now      func() time.Time

	mu    sync.RWMutex
	stats map[string]*Stats
}

type Option func(*Tracker)

// WithEventBus publishes a health_changed event on every state transition.
func WithEventBus(bus *events.Bus) Option {
	return func(t *Tracker) { t.bus = bus }
}

// WithOnUpdate runs fn after every recorded attempt, e.g. to refresh a gauge.
// fn runs under the tracker lock, so updates reach it in record order; it must
// not call back into the Tracker.
func WithOnUpdate(fn func(providerID string, state State)) Option {
	return func(t *Tracker) { t.onUpdate = fn }
}

func NewTracker(cfg Config, opts ...Option) *Tracker {
	t := &Tracker{cfg: cfg, now: time.Now, stats: make(map[string]*Stats)}
	for _, o := range opts {
		o(t)
	}
	return t
}

// RecordSuccess marks the provider healthy.
func (t *Tracker) RecordSuccess(providerID string) {
	t.mu.Lock()
	s := t.getOrCreate(providerID)
	old := s.State
	s.Attempts++
	s.ConsecFails = 0
	s.LastSuccessAt = t.now().UTC()
	s.State = StateHealthy
	s.ErrorRate = float64(s.Failures) / float64(s.Attempts)
	t.update(providerID, s.State)
	t.mu.Unlock()

	t.publish(providerID, old, StateHealthy, "attempt succeeded")
}

// RecordFailure counts a failed attempt and moves the provider to degraded or
// down once the consecutive-failure thresholds are reached.
func (t *Tracker) RecordFailure(providerID, errMsg string) {
	t.mu.Lock()
	s := t.getOrCreate(providerID)
	old := s.State
	s.Attempts++
	s.Failures++
	s.ConsecFails++
	s.LastError = errMsg
	s.LastErrorAt = t.now().UTC()
	s.ErrorRate = float64(s.Failures) / float64(s.Attempts)
	switch {
	case s.ConsecFails >= t.cfg.DownAfter:
		s.State = StateDown
	case s.ConsecFails >= t.cfg.DegradedAfter:
		s.State = StateDegraded
	}
	next := s.State
	t.update(providerID, next)
	t.mu.Unlock()

	t.publish(providerID, old, next, errMsg)
}

// update runs the hook. Caller must hold t.mu.
func (t *Tracker) update(providerID string, state State) {
	if t.onUpdate != nil {
		t.onUpdate(providerID, state)
	}
}

func (t *Tracker) publish(providerID string, old, next State, reason string) {
	if old != next && t.bus != nil {
		t.bus.Publish(events.Event{
			Type:       events.EventHealthChanged,
			ProviderID: providerID,
			Status:     string(next),
			ErrorMsg:   reason,
		})
	}
}

// Get returns a copy of one provider's record. Unknown providers are healthy.
func (t *Tracker) Get(providerID string) Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.stats[providerID]; ok {
		return *s
	}
	return Stats{ProviderID: providerID, State: StateHealthy}
}

// All returns every known provider's record, sorted by provider.
func (t *Tracker) All() []Stats {
	t.mu.RLock()
	out := make([]Stats, 0, len(t.stats))
	for _, s := range t.stats {
		out = append(out, *s)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out
}

func (t *Tracker) getOrCreate(providerID string) *Stats {
	s, ok := t.stats[providerID]
	if !ok {
		s = &Stats{ProviderID: providerID, State: StateHealthy}
		t.stats[providerID] = s
	}
	return s
}
