package session

import (
	"fmt"
	"sort"
	"time"
)

func (f Filter) matches(s *Session) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, s.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, s.Priority) {
		return false
	}
	if len(f.Tags) > 0 && !anyTag(f.Tags, s.Tags) {
		return false
	}
	return true
}

// applyFilter filters, orders and truncates sessions for the inbox: highest
// priority first, then most recently updated.
func applyFilter(all []*Session, f Filter) []*Session {
	out := make([]*Session, 0, len(all))
	for _, s := range all {
		if f.matches(s) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.rank(), out[j].Priority.rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func newStats() Stats {
	st := Stats{
		ByStatus:   make(map[Status]int, len(Statuses())),
		ByPriority: make(map[Priority]int, len(Priorities())),
	}
	for _, s := range Statuses() {
		st.ByStatus[s] = 0
	}
	for _, p := range Priorities() {
		st.ByPriority[p] = 0
	}
	return st
}

func (st *Stats) add(status Status, priority Priority) {
	st.Total++
	st.ByStatus[status]++
	st.ByPriority[priority]++
}

// archiveCutoff returns the completion time before which finished sessions
// are archived. A negative window would put the cutoff in the future.
func archiveCutoff(now time.Time, olderThan time.Duration) (time.Time, error) {
	if olderThan < 0 {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidWindow, olderThan)
	}
	return now.Add(-olderThan), nil
}

// archivable reports whether s should be archived at cutoff.
func archivable(s *Session, cutoff time.Time) bool {
	if s.Status != StatusCompleted && s.Status != StatusFailed {
		return false
	}
	return s.CompletedAt != nil && s.CompletedAt.Before(cutoff)
}

func normalizeCreate(p *CreateParams) error {
	if p.Priority == "" {
		p.Priority = PriorityNormal
	}
	if !p.Priority.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, p.Priority)
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Context == nil {
		p.Context = map[string]any{}
	}
	return nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(list []Priority, p Priority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

func anyTag(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}
