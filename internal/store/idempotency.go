package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopopti/extension-gateway/internal/gateway"
)

// Begin atomically inserts an in-flight placeholder for (key, userID), or
// observes the existing record. Implements the gateway's IdempotencyStore.
//
// Records are keyed per caller: the same key string presented by two users
// names two independent operations, so one user can never read back (or be
// blocked by) another user's record.
//
// The insert uses ON CONFLICT(key, user_id) DO NOTHING inside a transaction;
// exactly one of any number of concurrent callers sees RowsAffected > 0 and
// owns the execution. An expired record (done or orphaned in-flight) is
// reclaimed with a conditional UPDATE on expires_at, which at most one caller
// can win.
func (s *Store) Begin(ctx context.Context, key, userID, action string) (gateway.BeginResult, error) {
	now := s.clock.Now().Unix()
	expiresAt := now + int64(s.idemTTL.Seconds())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return gateway.BeginResult{}, fmt.Errorf("begin idempotency: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO idempotency_records (key, user_id, action, status, created_at, expires_at)
		VALUES (?, ?, ?, 'in-flight', ?, ?)
		ON CONFLICT(key, user_id) DO NOTHING
	`, key, userID, action, now, expiresAt)
	if err != nil {
		return gateway.BeginResult{}, fmt.Errorf("begin idempotency: insert: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return gateway.BeginResult{}, fmt.Errorf("begin idempotency: rows affected: %w", err)
	}
	if rows > 0 {
		if err := tx.Commit(); err != nil {
			return gateway.BeginResult{}, fmt.Errorf("begin idempotency: commit: %w", err)
		}
		return gateway.BeginResult{Started: true}, nil
	}

	// A record exists: expired, done, or in flight.
	res, err = tx.ExecContext(ctx, `
		UPDATE idempotency_records
		SET action = ?, status = 'in-flight', response = NULL,
		    created_at = ?, expires_at = ?
		WHERE key = ? AND user_id = ? AND expires_at <= ?
	`, action, now, expiresAt, key, userID, now)
	if err != nil {
		return gateway.BeginResult{}, fmt.Errorf("begin idempotency: reclaim: %w", err)
	}
	rows, err = res.RowsAffected()
	if err != nil {
		return gateway.BeginResult{}, fmt.Errorf("begin idempotency: reclaim rows affected: %w", err)
	}
	if rows > 0 {
		if err := tx.Commit(); err != nil {
			return gateway.BeginResult{}, fmt.Errorf("begin idempotency: commit: %w", err)
		}
		return gateway.BeginResult{Started: true}, nil
	}

	var status string
	var response []byte
	err = tx.QueryRowContext(ctx, `
		SELECT status, response FROM idempotency_records WHERE key = ? AND user_id = ?
	`, key, userID).Scan(&status, &response)
	if errors.Is(err, sql.ErrNoRows) {
		// Deleted between the insert and the read (a concurrent Abort).
		// Report in-flight; the caller re-checks after its wait.
		if err := tx.Commit(); err != nil {
			return gateway.BeginResult{}, fmt.Errorf("begin idempotency: commit: %w", err)
		}
		return gateway.BeginResult{}, nil
	}
	if err != nil {
		return gateway.BeginResult{}, fmt.Errorf("begin idempotency: read existing: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return gateway.BeginResult{}, fmt.Errorf("begin idempotency: commit: %w", err)
	}

	if status == "done" {
		return gateway.BeginResult{Done: true, Outcome: response}, nil
	}
	return gateway.BeginResult{}, nil
}

// Complete marks the record done and stores the final outcome, whatever it
// was. A failed attempt is remembered too: a retry under the same key
// re-observes the failure instead of re-running a doomed operation.
func (s *Store) Complete(ctx context.Context, key, userID string, outcome []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE idempotency_records
		SET status = 'done', response = ?
		WHERE key = ? AND user_id = ?
	`, outcome, key, userID)
	if err != nil {
		return fmt.Errorf("complete idempotency: %w", err)
	}
	return nil
}

// Abort removes a still in-flight placeholder so a later retry gets a fresh
// attempt. Done records are never removed here; they expire on their own.
func (s *Store) Abort(ctx context.Context, key, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM idempotency_records
		WHERE key = ? AND user_id = ? AND status = 'in-flight'
	`, key, userID)
	if err != nil {
		return fmt.Errorf("abort idempotency: %w", err)
	}
	return nil
}
