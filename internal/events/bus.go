package events

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType identifies the kind of event.
type EventType string

const (
	EventAttemptFailed        EventType = "attempt_failed"
	EventCallSucceeded        EventType = "call_succeeded"
	EventCallFailed           EventType = "call_failed"
	EventSessionCreated       EventType = "session_created"
	EventSessionStatusChanged EventType = "session_status_changed"
	EventSessionsArchived     EventType = "sessions_archived"
	EventHealthChanged        EventType = "health_changed"
)

// Event is a single event published on the bus.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Routing fields.
	ProviderID string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	Attempt    int    `json:"attempt,omitempty"`
	LatencyMs  int64  `json:"latency_ms,omitempty"`
	Tokens     int    `json:"tokens,omitempty"`
	ErrorClass string `json:"error_class,omitempty"`
	ErrorMsg   string `json:"error_msg,omitempty"`

	// Session fields.
	SessionID string `json:"session_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Count     int    `json:"count,omitempty"`

	RequestID string `json:"request_id,omitempty"`
}

// JSON returns the event as a JSON byte slice.
func (e *Event) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Subscriber receives events on a channel.
type Subscriber struct {
	C    chan Event
	done chan struct{}
}

// Bus is an in-memory pub/sub bus. Slow subscribers lose events rather than
// block publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// Subscribe creates a new subscriber with a buffered channel.
func (b *Bus) Subscribe(bufSize int) *Subscriber {
	if bufSize <= 0 {
		bufSize = 64
	}
	s := &Subscriber{
		C:    make(chan Event, bufSize),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.subscribers[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes a subscriber. Calling it twice is a no-op.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[s]; !ok {
		return
	}
	delete(b.subscribers, s)
	close(s.done)
}

// Done is closed once the subscriber is removed from the bus.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Publish sends an event to all subscribers without blocking.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subscribers {
		select {
		case s.C <- e:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
