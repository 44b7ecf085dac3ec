package actions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/shopopti/extension-gateway/internal/gateway"
)

// knownScopes is the grantable scope set. Requesting anything else fails at
// issue time rather than surprising later.
var knownScopes = []string{
	"products:import",
	"products:bulk",
	"ai:optimize",
	"ai:seo",
	"sync:stock",
	"sync:price",
}

// defaultScopes is what a token gets when the request names none.
var defaultScopes = []string{"products:import", "sync:stock", "sync:price"}

func scopeKnown(scope string) bool {
	for _, s := range knownScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// generateToken mints a token pair for a user. Runs without a token: it is
// how an extension bootstraps one.
func (s *Service) generateToken(ctx context.Context, req gateway.HandlerRequest) (any, error) {
	var p struct {
		UserID string   `json:"userId"`
		Scopes []string `json:"scopes"`
		Plan   string   `json:"plan"`
	}
	if err := decodePayload(generateTokenPayloadSchema, req.Payload, &p); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(p.UserID); err != nil {
		return nil, gateway.NewError(gateway.CodeInvalidPayload, "userId must be a UUID").
			WithDetail("received", p.UserID)
	}
	scopes := p.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	for _, scope := range scopes {
		if !scopeKnown(scope) {
			return nil, gateway.NewError(gateway.CodeInvalidPayload, "unknown scope requested").
				WithDetail("scope", scope)
		}
	}

	t, err := s.store.IssueToken(ctx, p.UserID, scopes, p.Plan, s.tokenTTL)
	if err != nil {
		return nil, gateway.Errorf(gateway.CodeHandlerError, "token generation failed: %v", err)
	}
	s.log.Info("extension token issued", "userId", p.UserID, "scopes", scopes)

	return map[string]any{
		"token":        t.Token,
		"refreshToken": t.RefreshToken,
		"expiresAt":    t.ExpiresAt.UTC().Format(time.RFC3339),
		"scopes":       t.Scopes,
		"user":         map[string]any{"id": t.UserID, "plan": t.Plan},
	}, nil
}

// validateToken reports what the presented token resolves to. The pipeline
// has already authenticated it; reaching the handler is the proof.
func (s *Service) validateToken(ctx context.Context, req gateway.HandlerRequest) (any, error) {
	return map[string]any{
		"valid":  true,
		"userId": req.Caller.UserID,
		"scopes": req.Caller.Scopes,
		"plan":   req.Caller.Plan,
	}, nil
}

// refreshToken exchanges a refresh token for a new pair. Anonymous by design:
// the access token being refreshed is typically already expired.
func (s *Service) refreshToken(ctx context.Context, req gateway.HandlerRequest) (any, error) {
	var p struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodePayload(refreshTokenPayloadSchema, req.Payload, &p); err != nil {
		return nil, err
	}

	t, err := s.store.RefreshToken(ctx, p.RefreshToken, s.tokenTTL)
	if err != nil {
		if errors.Is(err, gateway.ErrTokenInvalid) {
			return nil, gateway.NewError(gateway.CodeUnauthorized, "invalid refresh token")
		}
		return nil, gateway.Errorf(gateway.CodeHandlerError, "token refresh failed: %v", err)
	}

	return map[string]any{
		"token":        t.Token,
		"refreshToken": t.RefreshToken,
		"expiresAt":    t.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// revokeToken invalidates the presented token.
func (s *Service) revokeToken(ctx context.Context, req gateway.HandlerRequest) (any, error) {
	if err := s.store.RevokeToken(ctx, req.Identity.Token); err != nil {
		return nil, gateway.Errorf(gateway.CodeHandlerError, "token revocation failed: %v", err)
	}
	s.log.Info("extension token revoked", "userId", req.Caller.UserID)
	return map[string]any{"revoked": true}, nil
}

// heartbeat records extension liveness and tells the client what the latest
// version is.
func (s *Service) heartbeat(ctx context.Context, req gateway.HandlerRequest) (any, error) {
	platform, _ := req.Payload["platform"].(string)
	browser, _ := req.Payload["browser"].(string)

	if err := s.store.UpsertHeartbeat(ctx, req.Caller.UserID, req.Identity.Version.String(), platform, browser); err != nil {
		return nil, gateway.Errorf(gateway.CodeHandlerError, "heartbeat failed: %v", err)
	}

	return map[string]any{
		"serverTime":    s.clock.Now().UTC().Format(time.RFC3339),
		"latestVersion": s.latest.String(),
	}, nil
}
