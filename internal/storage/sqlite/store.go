// Package sqlite provides the SQLite-backed system of record for calls, call history and
// the presence snapshot.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dkeye/Voice/internal/domain"
	"github.com/dkeye/Voice/internal/storage/sqlite/migrations"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Store persists call and presence state in SQLite.
type Store struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens (or creates) the database at path and applies the embedded schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Str("module", "storage.sqlite").Str("path", cleanPath).Msg("store opened")
	return &Store{db: db}, nil
}

func migrate(db *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, f := range files {
		content, err := fs.ReadFile(migrationFS, f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", f, err)
		}
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveCall upserts one call row.
func (s *Store) SaveCall(ctx context.Context, c domain.CallSession) error {
	if c.CallID == "" {
		return fmt.Errorf("call id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (call_id, room_id, caller_id, caller_name, caller_role, receiver_id, receiver_name,
		   receiver_role, call_type, status, created_at, accepted_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(call_id) DO UPDATE SET
		   receiver_name = excluded.receiver_name,
		   receiver_role = excluded.receiver_role,
		   status = excluded.status,
		   accepted_at = excluded.accepted_at,
		   ended_at = excluded.ended_at`,
		string(c.CallID), string(c.RoomID),
		string(c.Caller.ID), c.Caller.DisplayName, string(c.Caller.Kind),
		string(c.Receiver.ID), c.Receiver.DisplayName, string(c.Receiver.Kind),
		string(c.Kind), string(c.State),
		toMillis(c.CreatedAt), toMillis(c.AcceptedAt), toMillis(c.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("save call %s: %w", c.CallID, err)
	}
	return nil
}

// OpenCalls returns calls persisted as pending or active.
func (s *Store) OpenCalls(ctx context.Context) ([]domain.CallSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT call_id, room_id, caller_id, caller_name, caller_role, receiver_id, receiver_name, receiver_role,
		   call_type, status, created_at, accepted_at, ended_at
		 FROM calls WHERE status IN ('pending', 'active') ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query open calls: %w", err)
	}
	defer rows.Close()

	var out []domain.CallSession
	for rows.Next() {
		var (
			c                              domain.CallSession
			callerRole, receiverRole       string
			kind, status                   string
			createdAt, acceptedAt, endedAt int64
		)
		if err := rows.Scan(&c.CallID, &c.RoomID, &c.Caller.ID, &c.Caller.DisplayName, &callerRole,
			&c.Receiver.ID, &c.Receiver.DisplayName, &receiverRole, &kind, &status,
			&createdAt, &acceptedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		c.Caller.Kind = domain.IdentityKind(callerRole)
		c.Receiver.Kind = domain.IdentityKind(receiverRole)
		c.Kind = domain.CallKind(kind)
		c.State = domain.CallState(status)
		c.CreatedAt = fromMillis(createdAt)
		c.AcceptedAt = fromMillis(acceptedAt)
		c.EndedAt = fromMillis(endedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveHistory upserts the audit row of a call's room.
func (s *Store) SaveHistory(ctx context.Context, h domain.CallHistoryRecord) error {
	if h.RoomID == "" {
		return fmt.Errorf("room id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO call_history (room_id, call_id, caller_id, receiver_id, call_status, start_time, end_time, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(room_id) DO UPDATE SET
		   call_status = excluded.call_status,
		   end_time = excluded.end_time,
		   duration_ms = excluded.duration_ms`,
		string(h.RoomID), string(h.CallID), string(h.Caller), string(h.Receiver), string(h.Status),
		toMillis(h.StartTime), toMillis(h.EndTime), h.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("save history %s: %w", h.RoomID, err)
	}
	return nil
}

// History pages through the calls id took part in, newest first, and returns the total count.
func (s *Store) History(ctx context.Context, id domain.UserID, limit, offset int) ([]domain.CallHistoryRecord, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM call_history WHERE caller_id = ? OR receiver_id = ?`,
		string(id), string(id)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, call_id, caller_id, receiver_id, call_status, start_time, end_time, duration_ms
		 FROM call_history WHERE caller_id = ? OR receiver_id = ?
		 ORDER BY start_time DESC LIMIT ? OFFSET ?`,
		string(id), string(id), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []domain.CallHistoryRecord
	for rows.Next() {
		var (
			h                   domain.CallHistoryRecord
			status              string
			start, end, durMill int64
		)
		if err := rows.Scan(&h.RoomID, &h.CallID, &h.Caller, &h.Receiver, &status, &start, &end, &durMill); err != nil {
			return nil, 0, fmt.Errorf("scan history: %w", err)
		}
		h.Status = domain.CallState(status)
		h.StartTime = fromMillis(start)
		h.EndTime = fromMillis(end)
		h.Duration = time.Duration(durMill) * time.Millisecond
		out = append(out, h)
	}
	return out, total, rows.Err()
}

// SavePresence upserts the snapshot row of one identity.
func (s *Store) SavePresence(ctx context.Context, p domain.PresenceSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_connections (user_id, transport_id, role, status, last_seen)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   transport_id = excluded.transport_id,
		   role = CASE WHEN excluded.role = '' THEN user_connections.role ELSE excluded.role END,
		   status = excluded.status,
		   last_seen = excluded.last_seen`,
		string(p.IdentityID), string(p.TransportID), string(p.Kind), string(p.Status), toMillis(p.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("save presence %s: %w", p.IdentityID, err)
	}
	return nil
}

// TouchPresence refreshes last_seen of an existing row.
func (s *Store) TouchPresence(ctx context.Context, id domain.UserID, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_connections SET last_seen = ? WHERE user_id = ?`, toMillis(at), string(id))
	if err != nil {
		return fmt.Errorf("touch presence %s: %w", id, err)
	}
	return nil
}

// Presence returns the snapshot row of id, if any.
func (s *Store) Presence(ctx context.Context, id domain.UserID) (domain.PresenceSnapshot, bool, error) {
	var (
		p              domain.PresenceSnapshot
		role, status   string
		lastSeenMillis int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, transport_id, role, status, last_seen FROM user_connections WHERE user_id = ?`,
		string(id)).Scan(&p.IdentityID, &p.TransportID, &role, &status, &lastSeenMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PresenceSnapshot{}, false, nil
	}
	if err != nil {
		return domain.PresenceSnapshot{}, false, fmt.Errorf("query presence %s: %w", id, err)
	}
	p.Kind = domain.IdentityKind(role)
	p.Status = domain.PresenceStatus(status)
	p.LastSeen = fromMillis(lastSeenMillis)
	return p, true, nil
}

// MarkStaleOffline flips every online row last seen before the threshold to offline.
func (s *Store) MarkStaleOffline(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_connections SET status = 'offline', transport_id = ''
		 WHERE status = 'online' AND last_seen < ?`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("mark stale presence: %w", err)
	}
	return res.RowsAffected()
}
