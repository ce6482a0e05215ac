package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const snapshotsSchema = `CREATE TABLE IF NOT EXISTS snapshots (
	document_id TEXT PRIMARY KEY,
	state       TEXT NOT NULL,
	saved_at    TEXT NOT NULL
)`

type sqliteConfig struct {
	busyTimeout int
	synchronous string
	mkdirAll    bool
	now         func() time.Time
}

func sqliteDefaults() sqliteConfig {
	return sqliteConfig{
		busyTimeout: 10_000,
		synchronous: "NORMAL",
		now:         time.Now,
	}
}

// SQLiteOption customises OpenSQLite and NewSQLiteStore.
type SQLiteOption func(*sqliteConfig)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) SQLiteOption { return func(c *sqliteConfig) { c.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) SQLiteOption {
	return func(c *sqliteConfig) { c.synchronous = mode }
}

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() SQLiteOption { return func(c *sqliteConfig) { c.mkdirAll = true } }

// WithSQLiteClock stamps records saved without a SavedAt.
func WithSQLiteClock(now func() time.Time) SQLiteOption {
	return func(c *sqliteConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// SQLiteStore keeps one JSON snapshot per document in the snapshots table.
type SQLiteStore[T any] struct {
	db     *sql.DB
	now    func() time.Time
	ownsDB bool
}

// OpenSQLite opens (or creates) the database at path, applies WAL and
// busy-timeout pragmas, and ensures the schema. Use ":memory:" in tests.
func OpenSQLite[T any](path string, opts ...SQLiteOption) (*SQLiteStore[T], error) {
	cfg := sqliteDefaults()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("state: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open sqlite: %w", err)
	}
	// One connection keeps pragmas and ":memory:" databases consistent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("state: %s: %w", p, err)
		}
	}

	store, err := newSQLiteStore[T](db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.ownsDB = true
	return store, nil
}

// NewSQLiteStore uses an already opened database. The caller keeps ownership
// of db; Close on the returned store is a no-op.
func NewSQLiteStore[T any](db *sql.DB, opts ...SQLiteOption) (*SQLiteStore[T], error) {
	if db == nil {
		return nil, errors.New("state: sqlite db is required")
	}
	cfg := sqliteDefaults()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return newSQLiteStore[T](db, cfg)
}

func newSQLiteStore[T any](db *sql.DB, cfg sqliteConfig) (*SQLiteStore[T], error) {
	if _, err := db.Exec(snapshotsSchema); err != nil {
		return nil, fmt.Errorf("state: exec schema: %w", err)
	}
	return &SQLiteStore[T]{db: db, now: cfg.now}, nil
}

func (s *SQLiteStore[T]) Save(ctx context.Context, documentID string, record Record[T]) error {
	if documentID == "" {
		return ErrDocumentIDRequired
	}
	payload, err := json.Marshal(record.State)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", documentID, err)
	}
	savedAt := record.SavedAt
	if savedAt.IsZero() {
		savedAt = s.now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (document_id, state, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET state = excluded.state, saved_at = excluded.saved_at`,
		documentID, string(payload), savedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("state: save %q: %w", documentID, err)
	}
	return nil
}

func (s *SQLiteStore[T]) Load(ctx context.Context, documentID string) (Record[T], bool, error) {
	if documentID == "" {
		return Record[T]{}, false, ErrDocumentIDRequired
	}

	var payload, savedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT state, saved_at FROM snapshots WHERE document_id = ?`, documentID,
	).Scan(&payload, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record[T]{}, false, nil
	}
	if err != nil {
		return Record[T]{}, false, fmt.Errorf("state: load %q: %w", documentID, err)
	}

	var record Record[T]
	if err := json.Unmarshal([]byte(payload), &record.State); err != nil {
		return Record[T]{}, false, fmt.Errorf("state: decode %q: %w", documentID, err)
	}
	record.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return Record[T]{}, false, fmt.Errorf("state: parse saved_at for %q: %w", documentID, err)
	}
	return record, true, nil
}

// Delete removes the snapshot of documentID, reporting whether one existed.
func (s *SQLiteStore[T]) Delete(ctx context.Context, documentID string) (bool, error) {
	if documentID == "" {
		return false, ErrDocumentIDRequired
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE document_id = ?`, documentID)
	if err != nil {
		return false, fmt.Errorf("state: delete %q: %w", documentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("state: delete %q: %w", documentID, err)
	}
	return n > 0, nil
}

// Close releases the database when the store opened it.
func (s *SQLiteStore[T]) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
