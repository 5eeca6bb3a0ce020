// Package session tracks work sessions: their status, priority, tags and
// message history. Two stores share the same semantics: an in-memory map and
// a SQLite database.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/enterprise-skillhub/skillhub/internal/router"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrInvalidStatus   = errors.New("invalid session status")
	ErrInvalidPriority = errors.New("invalid session priority")
	ErrInvalidRole     = errors.New("invalid message role")
	ErrInvalidWindow   = errors.New("invalid archive window")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusFlagged   Status = "flagged"
	StatusArchived  Status = "archived"
)

// Statuses lists every status.
func Statuses() []Status {
	return []Status{StatusPending, StatusActive, StatusCompleted, StatusFailed, StatusFlagged, StatusArchived}
}

func (s Status) Valid() bool {
	for _, v := range Statuses() {
		if v == s {
			return true
		}
	}
	return false
}

// terminal statuses stamp CompletedAt.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusArchived
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Priorities lists every priority from lowest to highest.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}
}

func (p Priority) Valid() bool {
	return p.rank() >= 0
}

// rank orders priorities for the inbox; lower ranks come first.
func (p Priority) rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	}
	return -1
}

type Message struct {
	ID        string      `json:"id"`
	Role      router.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

type Session struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Status      Status         `json:"status"`
	Priority    Priority       `json:"priority"`
	Tags        []string       `json:"tags"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	AssignedTo  string         `json:"assigned_to,omitempty"`
	Context     map[string]any `json:"context"`
	Messages    []Message      `json:"messages"`
}

// CreateParams holds the inputs of Store.Create. Priority defaults to NORMAL.
type CreateParams struct {
	Title          string
	Priority       Priority
	Tags           []string
	Context        map[string]any
	AssignedTo     string
	InitialMessage string
}

// Filter selects sessions for the inbox. Empty slices match everything; Tags
// matches sessions carrying any of the listed tags.
type Filter struct {
	Statuses   []Status
	Priorities []Priority
	Tags       []string
	Limit      int
}

// Stats counts sessions by status and priority. Every status and priority is
// present, zero when unused.
type Stats struct {
	Total      int              `json:"total"`
	ByStatus   map[Status]int   `json:"by_status"`
	ByPriority map[Priority]int `json:"by_priority"`
}

// Store persists sessions.
type Store interface {
	Create(ctx context.Context, p CreateParams) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Session, error)
	AddMessage(ctx context.Context, id string, role router.Role, content string) (*Session, error)
	Inbox(ctx context.Context, f Filter) ([]*Session, error)
	Stats(ctx context.Context) (Stats, error)
	// ArchiveCompleted archives completed and failed sessions whose
	// CompletedAt is older than olderThan, returning how many changed.
	ArchiveCompleted(ctx context.Context, olderThan time.Duration) (int, error)
	Close() error
}
