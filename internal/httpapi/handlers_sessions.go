package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/enterprise-skillhub/skillhub/internal/events"
	"github.com/enterprise-skillhub/skillhub/internal/router"
	"github.com/enterprise-skillhub/skillhub/internal/session"
)

// CreateSessionRequest is the body of POST /api/v1/sessions.
type CreateSessionRequest struct {
	Title          string           `json:"title" validate:"required"`
	Priority       session.Priority `json:"priority,omitempty" validate:"omitempty,oneof=LOW NORMAL HIGH URGENT"`
	Tags           []string         `json:"tags,omitempty"`
	Context        map[string]any   `json:"context,omitempty"`
	AssignedTo     string           `json:"assigned_to,omitempty"`
	InitialMessage string           `json:"initial_message,omitempty"`
}

type statusRequest struct {
	Status session.Status `json:"status" validate:"required,oneof=pending active completed failed flagged archived"`
}

type messageRequest struct {
	Role    router.Role `json:"role" validate:"required,oneof=system user assistant"`
	Content string      `json:"content" validate:"required"`
}

type archiveRequest struct {
	OlderThanDays *int `json:"older_than_days,omitempty" validate:"omitempty,gte=0,lte=36500"`
}

const defaultArchiveDays = 7

// InboxResponse is the body of GET /api/v1/sessions.
type InboxResponse struct {
	Sessions []*session.Session `json:"sessions"`
	Count    int                `json:"count"`
}

// SessionsInboxHandler lists sessions. Query parameters status, priority and
// tags take comma-separated values; limit caps the result.
func SessionsInboxHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f session.Filter
		for _, s := range splitList(q.Get("status")) {
			st := session.Status(s)
			if !st.Valid() {
				jsonError(w, "unknown status "+strconv.Quote(s), http.StatusBadRequest)
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
		for _, s := range splitList(q.Get("priority")) {
			p := session.Priority(strings.ToUpper(s))
			if !p.Valid() {
				jsonError(w, "unknown priority "+strconv.Quote(s), http.StatusBadRequest)
				return
			}
			f.Priorities = append(f.Priorities, p)
		}
		f.Tags = splitList(q.Get("tags"))
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
				return
			}
			f.Limit = n
		}

		list, err := d.Sessions.Inbox(r.Context(), f)
		if err != nil {
			sessionError(w, err)
			return
		}
		if list == nil {
			list = []*session.Session{}
		}
		writeJSON(w, http.StatusOK, InboxResponse{Sessions: list, Count: len(list)})
	}
}

func SessionsCreateHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := decodeJSON(r, &req, false); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s, err := d.Sessions.Create(r.Context(), session.CreateParams{
			Title:          req.Title,
			Priority:       req.Priority,
			Tags:           req.Tags,
			Context:        req.Context,
			AssignedTo:     req.AssignedTo,
			InitialMessage: req.InitialMessage,
		})
		if err != nil {
			sessionError(w, err)
			return
		}
		recordSession(d, events.EventSessionCreated, s.ID, string(s.Status))
		writeJSON(w, http.StatusCreated, s)
	}
}

func SessionsStatsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := d.Sessions.Stats(r.Context())
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func SessionGetHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := d.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func SessionStatusHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := decodeJSON(r, &req, false); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s, err := d.Sessions.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
		if err != nil {
			sessionError(w, err)
			return
		}
		recordSession(d, events.EventSessionStatusChanged, s.ID, string(s.Status))
		writeJSON(w, http.StatusOK, s)
	}
}

func SessionMessageHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if err := decodeJSON(r, &req, false); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s, err := d.Sessions.AddMessage(r.Context(), chi.URLParam(r, "id"), req.Role, req.Content)
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s)
	}
}

// SessionsArchiveHandler archives finished sessions older than
// older_than_days (default 7).
func SessionsArchiveHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req archiveRequest
		if err := decodeJSON(r, &req, true); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		days := defaultArchiveDays
		if req.OlderThanDays != nil {
			days = *req.OlderThanDays
		}
		n, err := d.Sessions.ArchiveCompleted(r.Context(), time.Duration(days)*24*time.Hour)
		if err != nil {
			sessionError(w, err)
			return
		}
		recordArchive(d, n)
		writeJSON(w, http.StatusOK, map[string]int{"archived": n})
	}
}

func sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, session.ErrInvalidStatus),
		errors.Is(err, session.ErrInvalidPriority),
		errors.Is(err, session.ErrInvalidRole),
		errors.Is(err, session.ErrInvalidWindow):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("session store error", slog.String("error", err.Error()))
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
