// Package cursor persists the last-processed commit per repository.
//
// The store is a small SQLite database (WAL mode) living next to the
// tracking log. Keying by repository path means two watched repositories
// can never clobber each other's dedupe state; losing the database only
// causes a commit to be re-logged, never lost.
package cursor

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Cursor is one persisted dedupe entry.
type Cursor struct {
	RepoPath   string
	LastCommit string
	UpdatedAt  time.Time
}

// Store wraps the cursor database connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the cursor database at path, enabling WAL mode and
// a busy timeout. The caller must Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cursor store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open cursor store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cursor store: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cursor store: %w", err)
	}
	s.conn = nil
	return nil
}

// initSchema creates the cursors table. Idempotent.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cursors (
		repo_path   TEXT PRIMARY KEY,
		last_commit TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize cursor schema: %w", err)
	}
	return nil
}

// Get returns the last processed commit for repoPath, or the empty string
// when the repository has never been processed.
func (s *Store) Get(ctx context.Context, repoPath string) (string, error) {
	var commit string
	err := s.conn.QueryRowContext(ctx,
		"SELECT last_commit FROM cursors WHERE repo_path = ?", repoPath,
	).Scan(&commit)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cursor for %s: %w", repoPath, err)
	}
	return commit, nil
}

// Set records commit as the last processed commit for repoPath.
func (s *Store) Set(ctx context.Context, repoPath, commit string) error {
	query := `
	INSERT INTO cursors (repo_path, last_commit, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(repo_path) DO UPDATE SET
		last_commit = excluded.last_commit,
		updated_at = excluded.updated_at
	`
	_, err := s.conn.ExecContext(ctx, query,
		repoPath, commit, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to persist cursor for %s: %w", repoPath, err)
	}
	return nil
}

// All returns every persisted cursor, ordered by repository path.
func (s *Store) All(ctx context.Context) ([]Cursor, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT repo_path, last_commit, updated_at FROM cursors ORDER BY repo_path")
	if err != nil {
		return nil, fmt.Errorf("failed to list cursors: %w", err)
	}
	defer rows.Close()

	var cursors []Cursor
	for rows.Next() {
		var c Cursor
		var updatedAt string
		if err := rows.Scan(&c.RepoPath, &c.LastCommit, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cursor: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			c.UpdatedAt = t
		}
		cursors = append(cursors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cursors: %w", err)
	}
	return cursors, nil
}
