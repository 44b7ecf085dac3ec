package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopopti/extension-gateway/internal/gateway"
)

// RecordEvent appends a terminal call outcome to the event log.
// Implements the gateway's EventRecorder.
func (s *Store) RecordEvent(ctx context.Context, ev gateway.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gateway_events
		(request_id, user_id, action, status, error_code, error_message,
		 duration_ms, extension_id, extension_version, platform, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.RequestID,
		nullable(ev.UserID),
		ev.Action,
		ev.Status,
		nullable(ev.ErrorCode),
		nullable(ev.ErrorMessage),
		ev.DurationMs,
		nullable(ev.ExtensionID),
		nullable(ev.ExtensionVersion),
		nullable(ev.Platform),
		s.clock.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// CountEventsSince counts a user's logged actions with the given prefix since
// the cutoff. Feeds quota reporting (e.g. "AI_" usage today).
func (s *Store) CountEventsSince(ctx context.Context, userID, actionPrefix string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM gateway_events
		WHERE user_id = ? AND action LIKE ? AND status = 'success' AND created_at >= ?
	`, userID, actionPrefix+"%", since.Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// nullable maps "" to NULL so empty optional fields stay out of the log.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
