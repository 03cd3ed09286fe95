package out

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"focusdeck/internal/modules/site/domain"

	_ "modernc.org/sqlite"
)

// savedAtLayout is fixed width so saved_at sorts as text.
const savedAtLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteBookmarkStore struct {
	db *sql.DB
}

// NewSQLiteBookmarkStore opens the bookmarks table. The database file may be
// shared with other stores.
func NewSQLiteBookmarkStore(dbPath string) (*SQLiteBookmarkStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	const ddl = `
CREATE TABLE IF NOT EXISTS bookmarks (
  site_id TEXT NOT NULL,
  post_id TEXT NOT NULL,
  author TEXT NOT NULL,
  text TEXT NOT NULL,
  permalink TEXT NOT NULL,
  saved_at TEXT NOT NULL,
  PRIMARY KEY (site_id, post_id)
);
CREATE INDEX IF NOT EXISTS bookmarks_saved ON bookmarks(saved_at);
`
	if _, err := db.ExecContext(context.Background(), ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bookmarks table: %w", err)
	}
	return &SQLiteBookmarkStore{db: db}, nil
}

func (s *SQLiteBookmarkStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteBookmarkStore) SaveBookmark(ctx context.Context, b domain.Bookmark) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO bookmarks(site_id, post_id, author, text, permalink, saved_at)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(site_id, post_id) DO UPDATE SET
  author = excluded.author,
  text = excluded.text,
  permalink = excluded.permalink,
  saved_at = excluded.saved_at
`, b.SiteID, b.PostID, b.Author, b.Text, b.Permalink, b.SavedAt.UTC().Format(savedAtLayout))
	if err != nil {
		return fmt.Errorf("save bookmark %s/%s: %w", b.SiteID, b.PostID, err)
	}
	return nil
}

func (s *SQLiteBookmarkStore) DeleteBookmark(ctx context.Context, siteID, postID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE site_id = ? AND post_id = ?`, siteID, postID); err != nil {
		return fmt.Errorf("delete bookmark %s/%s: %w", siteID, postID, err)
	}
	return nil
}

// ListBookmarks returns the newest first. limit <= 0 returns all.
func (s *SQLiteBookmarkStore) ListBookmarks(ctx context.Context, limit int) ([]domain.Bookmark, error) {
	query := `SELECT site_id, post_id, author, text, permalink, saved_at FROM bookmarks ORDER BY saved_at DESC, post_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	var out []domain.Bookmark
	for rows.Next() {
		var b domain.Bookmark
		var savedAt string
		if err := rows.Scan(&b.SiteID, &b.PostID, &b.Author, &b.Text, &b.Permalink, &savedAt); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		if b.SavedAt, err = time.Parse(savedAtLayout, savedAt); err != nil {
			return nil, fmt.Errorf("parse bookmark time: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
