package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/enterprise-skillhub/skillhub/internal/router"
)

// SQLiteStore implements Store using modernc.org/sqlite (pure-Go, no CGO).
// Timestamps are stored as Unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB

	now   func() time.Time
	newID func() string
}

// NewSQLite opens or creates a SQLite database at the given DSN.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if dsn == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(time.Hour)
	return &SQLiteStore{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			priority TEXT NOT NULL DEFAULT 'NORMAL',
			tags TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			completed_at INTEGER,
			assigned_to TEXT NOT NULL DEFAULT '',
			context TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
		`CREATE TABLE IF NOT EXISTS session_messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_messages_session ON session_messages(session_id)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, p CreateParams) (*Session, error) {
	if err := normalizeCreate(&p); err != nil {
		return nil, err
	}
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	sctx, err := json.Marshal(p.Context)
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}

	id := s.newID()
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, title, status, priority, tags, created_at, updated_at, assigned_to, context)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Title, StatusPending, p.Priority, string(tags), now.UnixNano(), now.UnixNano(), p.AssignedTo, string(sctx)); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	if p.InitialMessage != "" {
		if err := insertMessage(ctx, tx, s.newID(), id, router.RoleUser, p.InitialMessage, now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachMessages(ctx, []*Session{sess}, `WHERE session_id = ?`, id); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status Status) (*Session, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	now := s.now().UnixNano()

	var res sql.Result
	var err error
	if status.terminal() {
		res, err = s.db.ExecContext(ctx,
			`UPDATE sessions SET status = ?, updated_at = ?, completed_at = ? WHERE id = ?`, status, now, now, id)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`, status, now, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) AddMessage(ctx context.Context, id string, role router.Role, content string) (*Session, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now.UnixNano(), id)
	if err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	if err := insertMessage(ctx, tx, s.newID(), id, role, content, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Inbox(ctx context.Context, f Filter) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions`)
	if err != nil {
		return nil, err
	}
	var all []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		all = append(all, sess)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	out := applyFilter(all, f)
	if err := s.attachMessages(ctx, out, ""); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	st := newStats()
	rows, err := s.db.QueryContext(ctx, `SELECT status, priority, COUNT(*) FROM sessions GROUP BY status, priority`)
	if err != nil {
		return st, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status Status
		var priority Priority
		var n int
		if err := rows.Scan(&status, &priority, &n); err != nil {
			return st, err
		}
		st.Total += n
		st.ByStatus[status] += n
		st.ByPriority[priority] += n
	}
	return st, rows.Err()
}

func (s *SQLiteStore) ArchiveCompleted(ctx context.Context, olderThan time.Duration) (int, error) {
	now := s.now()
	cutoff, err := archiveCutoff(now, olderThan)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ?
		 WHERE status IN (?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		StatusArchived, now.UnixNano(), StatusCompleted, StatusFailed, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("archive sessions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

const sessionColumns = `id, title, status, priority, tags, created_at, updated_at, completed_at, assigned_to, context`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		sess             Session
		tags, sctx       string
		created, updated int64
		completed        sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.Title, &sess.Status, &sess.Priority, &tags,
		&created, &updated, &completed, &sess.AssignedTo, &sctx); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &sess.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", sess.ID, err)
	}
	if err := json.Unmarshal([]byte(sctx), &sess.Context); err != nil {
		return nil, fmt.Errorf("decode context of %s: %w", sess.ID, err)
	}
	if sess.Tags == nil {
		sess.Tags = []string{}
	}
	if sess.Context == nil {
		sess.Context = map[string]any{}
	}
	sess.CreatedAt = fromNanos(created)
	sess.UpdatedAt = fromNanos(updated)
	if completed.Valid {
		t := fromNanos(completed.Int64)
		sess.CompletedAt = &t
	}
	sess.Messages = []Message{}
	return &sess, nil
}

// attachMessages loads messages for the given sessions in insertion order.
func (s *SQLiteStore) attachMessages(ctx context.Context, sessions []*Session, where string, args ...any) error {
	if len(sessions) == 0 {
		return nil
	}
	byID := make(map[string]*Session, len(sessions))
	for _, sess := range sessions {
		byID[sess.ID] = sess
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, id, role, content, timestamp FROM session_messages `+where+` ORDER BY seq`, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var sessionID string
		var m Message
		var ts int64
		if err := rows.Scan(&sessionID, &m.ID, &m.Role, &m.Content, &ts); err != nil {
			return err
		}
		sess, ok := byID[sessionID]
		if !ok {
			continue
		}
		m.Timestamp = fromNanos(ts)
		sess.Messages = append(sess.Messages, m)
	}
	return rows.Err()
}

func insertMessage(ctx context.Context, tx *sql.Tx, id, sessionID string, role router.Role, content string, ts time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO session_messages (id, session_id, role, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		id, sessionID, role, content, ts.UnixNano())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
