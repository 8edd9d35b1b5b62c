package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// tsLayout is fixed-width so created_at sorts lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one long-term memory record.
type Entry struct {
	ID        uuid.UUID
	UserID    string
	Content   string
	CreatedAt time.Time
}

// SQLiteStore is the SQLite-backed long-term memory.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ltm_entries (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_ltm_user ON ltm_entries(user_id, created_at DESC);
	`)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Store implements schema.LongTermSink. Blank text is ignored.
func (s *SQLiteStore) Store(ctx context.Context, userID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ltm_entries (id, user_id, content, created_at) VALUES (?, ?, ?, ?)`,
		id.String(), userID, text, now.Format(tsLayout))
	if err != nil {
		return fmt.Errorf("insert ltm entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries for userID, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, content, created_at FROM ltm_entries
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query ltm entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			id, ts string
		)
		if err := rows.Scan(&id, &e.UserID, &e.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan ltm entry: %w", err)
		}
		e.ID, _ = uuid.Parse(id)
		e.CreatedAt, _ = time.Parse(tsLayout, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear deletes every entry for userID and reports how many were removed.
func (s *SQLiteStore) Clear(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ltm_entries WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear ltm entries: %w", err)
	}
	return res.RowsAffected()
}
