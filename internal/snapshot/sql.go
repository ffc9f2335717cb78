package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLStore keeps documents in the snapshots table. It works with any sqlx
// driver that understands ON CONFLICT upserts (postgres, sqlite).
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open connection. The store owns db and closes it.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// EnsureSchema creates the snapshots table when migrations are not used.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS snapshots (
  name TEXT PRIMARY KEY,
  body TEXT NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("snapshot: create snapshots table: %w", err)
	}
	return nil
}

// Load selects the document body.
func (s *SQLStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	var body string
	err := s.db.GetContext(ctx, &body, s.db.Rebind(`SELECT body FROM snapshots WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: select %s: %w", name, err)
	}
	return []byte(body), nil
}

// Save upserts the document body.
func (s *SQLStore) Save(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	const stmt = `
INSERT INTO snapshots (name, body, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
  body = excluded.body,
  updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(stmt), name, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("snapshot: upsert %s: %w", name, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
