package store

import (
	"context"
	"fmt"
)

// Remember records a request id on first sight and reports whether it was
// new. Implements the gateway's ReplayGuard with a durable backend: replay
// rejection survives process restarts.
//
// The check-and-insert is a single INSERT ... ON CONFLICT DO NOTHING; the
// RowsAffected count tells first sight from re-delivery without a separate
// read. An expired record is taken over with a conditional UPDATE, which is
// equally race-free: only one of two concurrent takeovers can match the
// expired row.
func (s *Store) Remember(ctx context.Context, requestID, extensionID, action string) (bool, error) {
	now := s.clock.Now().Unix()
	expiresAt := now + int64(s.replay.Seconds())

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO replay_records (request_id, extension_id, action, seen_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO NOTHING
	`, requestID, extensionID, action, now, expiresAt)
	if err != nil {
		return false, fmt.Errorf("remember request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remember request: rows affected: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	// A record exists. If it has expired, reclaim it; otherwise this is a
	// replay.
	res, err = s.db.ExecContext(ctx, `
		UPDATE replay_records
		SET extension_id = ?, action = ?, seen_at = ?, expires_at = ?
		WHERE request_id = ? AND expires_at <= ?
	`, extensionID, action, now, expiresAt, requestID, now)
	if err != nil {
		return false, fmt.Errorf("remember request: reclaim: %w", err)
	}
	rows, err = res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remember request: reclaim rows affected: %w", err)
	}
	return rows > 0, nil
}
