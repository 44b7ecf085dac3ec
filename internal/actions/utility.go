package actions

import (
	"context"
	"time"

	"github.com/shopopti/extension-gateway/internal/gateway"
	"github.com/shopopti/extension-gateway/internal/store"
)

// planLimits is the per-plan daily budget for imports and AI calls.
var planLimits = map[string]struct {
	Imports int
	AI      int
}{
	"free":      {Imports: 10, AI: 5},
	"pro":       {Imports: 100, AI: 50},
	"ultra_pro": {Imports: 1000, AI: 500},
}

// checkVersion reports the caller's standing against the version policy.
// Anonymous on purpose: an outdated extension asks this before it can log in.
func (s *Service) checkVersion(ctx context.Context, req gateway.HandlerRequest) (any, error) {
	current := req.Identity.Version
	return map[string]any{
		"current":         current.String(),
		"latest":          s.latest.String(),
		"minimum":         s.min.String(),
		"updateAvailable": current.Before(s.latest),
		"updateRequired":  current.Before(s.min),
	}, nil
}

// getSettings returns the caller's stored extension settings.
func (s *Service) getSettings(ctx context.Context, req gateway.HandlerRequest) (any, error) {
	settings, err := s.store.GetSettings(ctx, req.Caller.UserID)
	if err != nil {
		return nil, gateway.Errorf(gateway.CodeHandlerError, "failed to load settings: %v", err)
	}
	return map[string]any{"settings": settings}, nil
}

// checkQuota reports the caller's plan limits and today's usage. Usage counts
// come from the product table and the event log, not a separate counter, so
// they cannot drift.
func (s *Service) checkQuota(ctx context.Context, req gateway.HandlerRequest) (any, error) {
	plan := req.Caller.Plan
	limits, ok := planLimits[plan]
	if !ok {
		plan = "free"
		limits = planLimits["free"]
	}

	now := s.clock.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	imports, err := s.store.CountProductsSince(ctx, req.Caller.UserID, startOfDay)
	if err != nil {
		return nil, gateway.Errorf(gateway.CodeHandlerError, "quota lookup failed: %v", err)
	}
	aiCalls, err := s.store.CountEventsSince(ctx, req.Caller.UserID, "AI_", startOfDay)
	if err != nil {
		return nil, gateway.Errorf(gateway.CodeHandlerError, "quota lookup failed: %v", err)
	}

	return map[string]any{
		"plan": plan,
		"limits": map[string]any{
			"imports": limits.Imports,
			"ai":      limits.AI,
		},
		"usage": map[string]any{
			"imports": imports,
			"ai":      aiCalls,
		},
		"remaining": map[string]any{
			"imports": max(0, limits.Imports-imports),
			"ai":      max(0, limits.AI-aiCalls),
		},
	}, nil
}

// logAnalytics appends a client telemetry event. Best effort on the client
// side; here a storage failure is still surfaced so the client can retry.
func (s *Service) logAnalytics(ctx context.Context, req gateway.HandlerRequest) (any, error) {
	eventType, _ := req.Payload["eventType"].(string)
	if eventType == "" {
		eventType = "unknown"
	}
	eventData, _ := req.Payload["eventData"].(map[string]any)
	sourceURL, _ := req.Payload["url"].(string)

	err := s.store.RecordAnalytics(ctx, store.AnalyticsEvent{
		UserID:    req.Caller.UserID,
		EventType: eventType,
		EventData: eventData,
		SourceURL: sourceURL,
	})
	if err != nil {
		return nil, gateway.Errorf(gateway.CodeHandlerError, "failed to record analytics: %v", err)
	}
	return map[string]any{"logged": true}, nil
}

// logAction appends a user-visible action log row.
func (s *Service) logAction(ctx context.Context, req gateway.HandlerRequest) (any, error) {
	actionType, _ := req.Payload["actionType"].(string)
	if actionType == "" {
		actionType = "UNKNOWN"
	}
	actionStatus, _ := req.Payload["actionStatus"].(string)
	platform, _ := req.Payload["platform"].(string)
	productTitle, _ := req.Payload["productTitle"].(string)
	productURL, _ := req.Payload["productUrl"].(string)
	productID, _ := req.Payload["productId"].(string)
	metadata, _ := req.Payload["metadata"].(map[string]any)

	err := s.store.RecordActionLog(ctx, store.ActionLog{
		UserID:           req.Caller.UserID,
		ActionType:       actionType,
		ActionStatus:     actionStatus,
		Platform:         platform,
		ProductTitle:     truncate(productTitle, maxTitleBytes),
		ProductURL:       productURL,
		ProductID:        productID,
		Metadata:         metadata,
		ExtensionVersion: req.Identity.Version.String(),
	})
	if err != nil {
		return nil, gateway.Errorf(gateway.CodeHandlerError, "failed to log action: %v", err)
	}
	return map[string]any{"logged": true}, nil
}
