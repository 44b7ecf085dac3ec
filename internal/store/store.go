package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const (
	defaultReplayTTL      = 10 * time.Minute
	defaultIdempotencyTTL = 24 * time.Hour
)

// Store provides durable storage for the gateway: replay records,
// idempotency records, the event log, extension tokens and the handler-side
// tables (products, sync jobs, settings).
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db      *sql.DB
	clock   clock.Clock
	replay  time.Duration // replay record TTL
	idemTTL time.Duration // idempotency record TTL
}

// Option adjusts a Store before it is used.
type Option func(*Store)

// WithClock substitutes the time source, for tests.
func WithClock(clk clock.Clock) Option {
	return func(s *Store) { s.clock = clk }
}

// WithReplayTTL sets the lifetime of replay records.
func WithReplayTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.replay = ttl
		}
	}
}

// WithIdempotencyTTL sets the lifetime of idempotency records.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.idemTTL = ttl
		}
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:      db,
		clock:   clock.New(),
		replay:  defaultReplayTTL,
		idemTTL: defaultIdempotencyTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Sweep deletes expired replay and idempotency records. Called periodically
// by the serve loop; expiry checks on the hot path do not depend on it.
func (s *Store) Sweep(ctx context.Context) (removed int64, err error) {
	now := s.clock.Now().Unix()

	res, err := s.db.ExecContext(ctx, `DELETE FROM replay_records WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("sweep replay records: %w", err)
	}
	n, _ := res.RowsAffected()
	removed += n

	res, err = s.db.ExecContext(ctx, `DELETE FROM idempotency_records WHERE expires_at <= ?`, now)
	if err != nil {
		return removed, fmt.Errorf("sweep idempotency records: %w", err)
	}
	n, _ = res.RowsAffected()
	removed += n

	return removed, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}
