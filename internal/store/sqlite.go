package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS wrapper_flags (
	workspace TEXT NOT NULL,
	id        TEXT NOT NULL,
	enabled   INTEGER NOT NULL,
	PRIMARY KEY (workspace, id)
)`

// SQLite stores flags in a single database shared by all workspaces.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. ":memory:" keeps it in
// memory.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection: ":memory:" databases are per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context, workspace string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, enabled FROM wrapper_flags WHERE workspace = ?", workspace)
	if err != nil {
		return nil, fmt.Errorf("querying flags: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			id      string
			enabled bool
		)
		if err := rows.Scan(&id, &enabled); err != nil {
			return nil, fmt.Errorf("scanning flag: %w", err)
		}
		out[id] = enabled
	}
	return out, rows.Err()
}

func (s *SQLite) Save(ctx context.Context, workspace, id string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wrapper_flags (workspace, id, enabled) VALUES (?, ?, ?)
		ON CONFLICT (workspace, id) DO UPDATE SET enabled = excluded.enabled
	`, workspace, id, boolInt(enabled))
	if err != nil {
		return fmt.Errorf("saving flag %s: %w", id, err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
