package session

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/enterprise-skillhub/skillhub/internal/router"
)

// MemoryStore keeps sessions in a map. Callers always receive copies.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	now   func() time.Time
	newID func() string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (m *MemoryStore) Create(_ context.Context, p CreateParams) (*Session, error) {
	if err := normalizeCreate(&p); err != nil {
		return nil, err
	}
	now := m.now()
	s := &Session{
		ID:         m.newID(),
		Title:      p.Title,
		Status:     StatusPending,
		Priority:   p.Priority,
		Tags:       append([]string{}, p.Tags...),
		CreatedAt:  now,
		UpdatedAt:  now,
		AssignedTo: p.AssignedTo,
		Context:    maps.Clone(p.Context),
		Messages:   []Message{},
	}
	if p.InitialMessage != "" {
		s.Messages = append(s.Messages, Message{
			ID:        m.newID(),
			Role:      router.RoleUser,
			Content:   p.InitialMessage,
			Timestamp: now,
		})
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return clone(s), nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status Status) (*Session, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := m.now()
	s.Status = status
	s.UpdatedAt = now
	if status.terminal() {
		s.CompletedAt = &now
	}
	return clone(s), nil
}

func (m *MemoryStore) AddMessage(_ context.Context, id string, role router.Role, content string) (*Session, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := m.now()
	s.Messages = append(s.Messages, Message{ID: m.newID(), Role: role, Content: content, Timestamp: now})
	s.UpdatedAt = now
	return clone(s), nil
}

func (m *MemoryStore) Inbox(_ context.Context, f Filter) ([]*Session, error) {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, clone(s))
	}
	m.mu.RUnlock()
	return applyFilter(all, f), nil
}

func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	st := newStats()
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		st.add(s.Status, s.Priority)
	}
	return st, nil
}

func (m *MemoryStore) ArchiveCompleted(_ context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	cutoff, err := archiveCutoff(now, olderThan)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range m.sessions {
		if archivable(s, cutoff) {
			s.Status = StatusArchived
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }

func clone(s *Session) *Session {
	c := *s
	c.Tags = append([]string{}, s.Tags...)
	c.Messages = append([]Message{}, s.Messages...)
	c.Context = maps.Clone(s.Context)
	if c.Context == nil {
		c.Context = map[string]any{}
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
