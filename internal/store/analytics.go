package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// AnalyticsEvent is one client-side telemetry event (page views, clicks).
type AnalyticsEvent struct {
	UserID    string
	EventType string
	EventData map[string]any
	SourceURL string
}

// RecordAnalytics appends a telemetry event.
func (s *Store) RecordAnalytics(ctx context.Context, ev AnalyticsEvent) error {
	data, err := json.Marshal(ev.EventData)
	if err != nil {
		return fmt.Errorf("record analytics: encode data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO extension_analytics (user_id, event_type, event_data, source_url, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ev.UserID, ev.EventType, string(data), nullable(ev.SourceURL), s.clock.Now().Unix())
	if err != nil {
		return fmt.Errorf("record analytics: %w", err)
	}
	return nil
}

// ActionLog is one user-visible action the extension performed locally.
type ActionLog struct {
	UserID           string
	ActionType       string
	ActionStatus     string
	Platform         string
	ProductTitle     string
	ProductURL       string
	ProductID        string
	Metadata         map[string]any
	ExtensionVersion string
}

// RecordActionLog appends an action log row.
func (s *Store) RecordActionLog(ctx context.Context, l ActionLog) error {
	if l.ActionStatus == "" {
		l.ActionStatus = "success"
	}
	meta, err := json.Marshal(l.Metadata)
	if err != nil {
		return fmt.Errorf("record action log: encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO extension_action_logs
		(user_id, action_type, action_status, platform, product_title, product_url,
		 product_id, metadata, extension_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.UserID, l.ActionType, l.ActionStatus, nullable(l.Platform),
		nullable(l.ProductTitle), nullable(l.ProductURL), nullable(l.ProductID),
		string(meta), nullable(l.ExtensionVersion), s.clock.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record action log: %w", err)
	}
	return nil
}
