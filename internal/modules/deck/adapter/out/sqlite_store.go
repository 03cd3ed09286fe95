package out

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"focusdeck/internal/modules/deck/domain"

	_ "modernc.org/sqlite"
)

const (
	stateSnapshot = "snapshot"
	stateUsage    = "usage"
)

// SQLiteStore keeps the live snapshot, today's usage and the session history
// in one database file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	// Bookmarks share the file through a second handle.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes the concurrent snapshot and usage flushes.
	db.SetMaxOpenConns(1)
	store := &SQLiteStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS session_state (
  key TEXT PRIMARY KEY,
  payload TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS session_history (
  id TEXT PRIMARY KEY,
  adapter_id TEXT NOT NULL,
  started_at TEXT NOT NULL,
  ended_at TEXT NOT NULL,
  reason TEXT NOT NULL,
  viewed_count INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL,
  active_ms INTEGER NOT NULL,
  not_interested INTEGER NOT NULL,
  bookmarked INTEGER NOT NULL,
  opened_details INTEGER NOT NULL,
  viewed_post_ids TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS session_history_started ON session_history(started_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create session tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*domain.SessionSnapshot, error) {
	snapshot := domain.SessionSnapshot{}
	found, err := s.loadState(ctx, stateSnapshot, &snapshot)
	if err != nil || !found {
		return nil, err
	}
	snapshot = domain.NormalizeSnapshot(snapshot)
	return &snapshot, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snapshot domain.SessionSnapshot) error {
	return s.saveState(ctx, stateSnapshot, snapshot)
}

func (s *SQLiteStore) ClearSnapshot(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_state WHERE key = ?`, stateSnapshot); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadUsage(ctx context.Context) (*domain.DailyUsage, error) {
	usage := domain.DailyUsage{}
	found, err := s.loadState(ctx, stateUsage, &usage)
	if err != nil || !found {
		return nil, err
	}
	return &usage, nil
}

func (s *SQLiteStore) SaveUsage(ctx context.Context, usage domain.DailyUsage) error {
	return s.saveState(ctx, stateUsage, usage)
}

func (s *SQLiteStore) loadState(ctx context.Context, key string, target any) (bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM session_state WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(payload), target); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) saveState(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	const stmt = `
INSERT INTO session_state (key, payload, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  payload=excluded.payload,
  updated_at=excluded.updated_at;
`
	if _, err := s.db.ExecContext(ctx, stmt, key, string(payload), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Record inserts rec or replaces the earlier record with the same id.
func (s *SQLiteStore) Record(ctx context.Context, rec domain.SessionRecord) error {
	ids, err := json.Marshal(rec.Stats.ViewedPostIDs)
	if err != nil {
		return fmt.Errorf("encode viewed posts: %w", err)
	}
	const stmt = `
INSERT INTO session_history (id, adapter_id, started_at, ended_at, reason, viewed_count, duration_ms, active_ms, not_interested, bookmarked, opened_details, viewed_post_ids)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  adapter_id=excluded.adapter_id,
  started_at=excluded.started_at,
  ended_at=excluded.ended_at,
  reason=excluded.reason,
  viewed_count=excluded.viewed_count,
  duration_ms=excluded.duration_ms,
  active_ms=excluded.active_ms,
  not_interested=excluded.not_interested,
  bookmarked=excluded.bookmarked,
  opened_details=excluded.opened_details,
  viewed_post_ids=excluded.viewed_post_ids;
`
	_, err = s.db.ExecContext(ctx, stmt,
		rec.ID,
		rec.AdapterID,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.EndedAt.UTC().Format(time.RFC3339Nano),
		string(rec.Summary.Reason),
		rec.Summary.ViewedCount,
		rec.Summary.DurationMs,
		rec.Stats.ActiveMs,
		rec.Stats.Actions.NotInterested,
		rec.Stats.Actions.Bookmarked,
		rec.Stats.Actions.OpenedDetails,
		string(ids),
	)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// List returns the newest records first. limit <= 0 returns all of them.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, adapter_id, started_at, ended_at, reason, viewed_count, duration_ms, active_ms, not_interested, bookmarked, opened_details, viewed_post_ids
FROM session_history
ORDER BY started_at DESC, id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionRecord
	for rows.Next() {
		var rec domain.SessionRecord
		var started, ended, reason, postIDs string
		if err := rows.Scan(
			&rec.ID,
			&rec.AdapterID,
			&started,
			&ended,
			&reason,
			&rec.Summary.ViewedCount,
			&rec.Summary.DurationMs,
			&rec.Stats.ActiveMs,
			&rec.Stats.Actions.NotInterested,
			&rec.Stats.Actions.Bookmarked,
			&rec.Stats.Actions.OpenedDetails,
			&postIDs,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.Summary.Reason = domain.CompletionReason(reason)
		rec.Stats.ViewedCount = rec.Summary.ViewedCount
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at of %s: %w", rec.ID, err)
		}
		if rec.EndedAt, err = time.Parse(time.RFC3339Nano, ended); err != nil {
			return nil, fmt.Errorf("parse ended_at of %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(postIDs), &rec.Stats.ViewedPostIDs); err != nil {
			return nil, fmt.Errorf("decode viewed posts of %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}
