// Package localstore persists the engine's durable state in a SQLite file.
// The store is a small key-value table: each record is one named JSON or text
// value, written whole.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"easymemo/application/ports"
	pkgerrors "easymemo/pkg/errors"
)

const (
	snapshotKey = "memos.v1"
	guestIDKey  = "identity.guest"
)

// Store is a SQLite-backed ports.LocalStore
type Store struct {
	db   *sql.DB
	path string
}

var _ ports.LocalStore = (*Store)(nil)

// Open creates or opens the store at path, creating parent directories as
// needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, pkgerrors.NewStorageError("creating store directory", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, pkgerrors.NewStorageError("opening store", err)
	}

	// The store has a single writer; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			name       TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`); err != nil {
		db.Close()
		return nil, pkgerrors.NewStorageError("initializing store schema", err)
	}

	return &Store{db: db, path: path}, nil
}

// LoadSnapshot returns the persisted memo collection, or (nil, nil) when the
// store has never been written.
func (s *Store) LoadSnapshot(ctx context.Context) (*ports.StoreSnapshot, error) {
	raw, err := s.get(ctx, snapshotKey)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var snap ports.StoreSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, pkgerrors.NewStorageError("decoding persisted snapshot", err)
	}
	return &snap, nil
}

// SaveSnapshot replaces the persisted memo collection atomically
func (s *Store) SaveSnapshot(ctx context.Context, snap *ports.StoreSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return pkgerrors.NewStorageError("encoding snapshot", err)
	}
	return s.put(ctx, snapshotKey, raw)
}

// LoadGuestID returns the persisted anonymous identity, or "" on first run
func (s *Store) LoadGuestID(ctx context.Context) (string, error) {
	raw, err := s.get(ctx, guestIDKey)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// SaveGuestID persists the anonymous identity so it survives restarts
func (s *Store) SaveGuestID(ctx context.Context, id string) error {
	return s.put(ctx, guestIDKey, []byte(id))
}

// Close releases the underlying database handle
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, name string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.NewStorageError("reading "+name, err)
	}
	return value, nil
}

func (s *Store) put(ctx context.Context, name string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, time.Now().UTC())
	if err != nil {
		return pkgerrors.NewStorageError("writing "+name, err)
	}
	return nil
}
