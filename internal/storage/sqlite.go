package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default single-file bucket store.
type SQLiteStore struct {
	db *sql.DB
}

// SQLitePath returns the database file location under the data directory.
func SQLitePath(dataDir string) string {
	return filepath.Join(dataDir, "repcal.db")
}

// SQLiteDSN returns the migration DSN for the database file.
func SQLiteDSN(dataDir string) string {
	return "sqlite://" + SQLitePath(dataDir)
}

// OpenSQLite opens (or creates) the bucket database under dataDir.
// Migrations must have been applied beforehand.
func OpenSQLite(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dataDir, err)
	}
	db, err := sql.Open("sqlite", SQLitePath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("opening bucket db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging bucket db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM buckets WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading bucket %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *SQLiteStore) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO buckets (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(value))
	if err != nil {
		return fmt.Errorf("saving bucket %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM buckets WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting bucket %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
