package gateway

import (
	"context"
	"errors"
)

// Caller is the tenant identity a token resolves to. Anonymous callers (for
// actions that require no token) carry only the extension install id.
type Caller struct {
	UserID    string
	Scopes    []string
	Plan      string
	Anonymous bool

	// ExtensionID is carried for rate-limit bucketing of anonymous traffic.
	ExtensionID string
}

// RateKey returns the identity component of a rate-limit bucket key.
// Authenticated callers are bucketed per user; anonymous callers per install,
// so one noisy install cannot starve every other anonymous client.
func (c Caller) RateKey() string {
	if c.Anonymous {
		return "anon:" + c.ExtensionID
	}
	return c.UserID
}

// HasScope reports whether the caller was granted the given scope.
func (c Caller) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ErrTokenInvalid is returned by TokenResolver implementations when the
// presented token is unknown, revoked or expired.
var ErrTokenInvalid = errors.New("invalid or expired token")

// TokenResolver maps an opaque extension token to a tenant identity.
// The store-backed implementation lives in internal/store.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (Caller, error)
}

// resolveCaller runs the auth stage. Actions that require no token proceed
// with an anonymous identity even when a token is present but useless.
func (g *Gateway) resolveCaller(ctx context.Context, spec ActionSpec, id Identity) (Caller, *Error) {
	anonymous := Caller{Anonymous: true, ExtensionID: id.ExtensionID}

	if !spec.RequiresToken {
		return anonymous, nil
	}
	if id.Token == "" {
		return Caller{}, NewError(CodeUnauthorized, "Extension-Token header required").
			WithDetail("action", spec.Name)
	}

	caller, err := g.auth.Resolve(ctx, id.Token)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			return Caller{}, NewError(CodeUnauthorized, "invalid or expired token")
		}
		return Caller{}, Errorf(CodeInternal, "token resolution failed: %v", err)
	}
	caller.ExtensionID = id.ExtensionID

	if spec.RequiredScope != "" && !caller.HasScope(spec.RequiredScope) {
		return Caller{}, NewError(CodeForbiddenScope, "token lacks required scope").
			WithDetail("required", spec.RequiredScope).
			WithDetail("granted", caller.Scopes)
	}
	return caller, nil
}
