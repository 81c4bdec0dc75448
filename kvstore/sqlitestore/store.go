// Package sqlitestore implements kvstore.Store on a single SQLite file, the
// desktop analogue of the device-local key/value storage mobile SDKs use.
package sqlitestore

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-sdk/kvstore"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

const upsertQuery = `
INSERT INTO kv (key, value, updated_at) VALUES (?1, ?2, ?3)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;
`

// Store is a kvstore.Store persisted in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ kvstore.Store = (*Store)(nil)

// Open opens (creating if needed) the SQLite file at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("[sqlitestore.Open] storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Open] open sqlite db")
	}
	// one writer keeps each Set a single atomic statement without SQLITE_BUSY churn
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "[sqlitestore.Open] ping sqlite db")
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "[sqlitestore.Open] apply schema")
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "[sqlitestore.Get]")
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if _, err := s.sqlDB.ExecContext(ctx, upsertQuery, key, value, time.Now().UTC().UnixMilli()); err != nil {
		return errors.Wrap(err, "[sqlitestore.Set]")
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM kv WHERE key = ?1`, key); err != nil {
		return errors.Wrap(err, "[sqlitestore.Remove]")
	}
	return nil
}
