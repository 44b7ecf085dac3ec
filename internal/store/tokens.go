package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shopopti/extension-gateway/internal/gateway"
)

// Token is one issued extension credential.
type Token struct {
	Token        string
	RefreshToken string
	UserID       string
	Scopes       []string
	Plan         string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// IssueToken mints a new opaque token pair for a user. Scopes are fixed at
// issue time; a token never gains permissions later.
func (s *Store) IssueToken(ctx context.Context, userID string, scopes []string, plan string, ttl time.Duration) (Token, error) {
	now := s.clock.Now()
	if plan == "" {
		plan = "free"
	}
	t := Token{
		Token:        "ext-" + uuid.NewString(),
		RefreshToken: "rft-" + uuid.NewString(),
		UserID:       userID,
		Scopes:       scopes,
		Plan:         plan,
		IssuedAt:     now,
		ExpiresAt:    now.Add(ttl),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extension_tokens (token, refresh_token, user_id, scopes, plan, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.Token, t.RefreshToken, userID, strings.Join(scopes, ","), plan, now.Unix(), t.ExpiresAt.Unix())
	if err != nil {
		return Token{}, fmt.Errorf("issue token: %w", err)
	}
	return t, nil
}

// Resolve maps a presented token to a tenant identity. Implements the
// gateway's TokenResolver. Unknown, revoked and expired tokens all surface
// gateway.ErrTokenInvalid; the caller cannot tell them apart.
func (s *Store) Resolve(ctx context.Context, token string) (gateway.Caller, error) {
	var userID, scopes, plan string
	var expiresAt int64
	var revoked int
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, scopes, plan, expires_at, revoked
		FROM extension_tokens WHERE token = ?
	`, token).Scan(&userID, &scopes, &plan, &expiresAt, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return gateway.Caller{}, gateway.ErrTokenInvalid
	}
	if err != nil {
		return gateway.Caller{}, fmt.Errorf("resolve token: %w", err)
	}
	if revoked != 0 || s.clock.Now().Unix() >= expiresAt {
		return gateway.Caller{}, gateway.ErrTokenInvalid
	}
	return gateway.Caller{
		UserID: userID,
		Scopes: splitScopes(scopes),
		Plan:   plan,
	}, nil
}

// RefreshToken exchanges a refresh token for a fresh token pair, revoking the
// old pair in the same transaction.
func (s *Store) RefreshToken(ctx context.Context, refreshToken string, ttl time.Duration) (Token, error) {
	now := s.clock.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Token{}, fmt.Errorf("refresh token: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var userID, scopes, plan string
	var revoked int
	err = tx.QueryRowContext(ctx, `
		SELECT user_id, scopes, plan, revoked
		FROM extension_tokens WHERE refresh_token = ?
	`, refreshToken).Scan(&userID, &scopes, &plan, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return Token{}, gateway.ErrTokenInvalid
	}
	if err != nil {
		return Token{}, fmt.Errorf("refresh token: lookup: %w", err)
	}
	if revoked != 0 {
		return Token{}, gateway.ErrTokenInvalid
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE extension_tokens SET revoked = 1 WHERE refresh_token = ?
	`, refreshToken); err != nil {
		return Token{}, fmt.Errorf("refresh token: revoke old: %w", err)
	}

	t := Token{
		Token:        "ext-" + uuid.NewString(),
		RefreshToken: "rft-" + uuid.NewString(),
		UserID:       userID,
		Scopes:       splitScopes(scopes),
		Plan:         plan,
		IssuedAt:     now,
		ExpiresAt:    now.Add(ttl),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO extension_tokens (token, refresh_token, user_id, scopes, plan, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.Token, t.RefreshToken, userID, scopes, plan, now.Unix(), t.ExpiresAt.Unix()); err != nil {
		return Token{}, fmt.Errorf("refresh token: insert new: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Token{}, fmt.Errorf("refresh token: commit: %w", err)
	}
	return t, nil
}

// RevokeToken marks a token unusable. Revoking an unknown token is not an
// error; the end state is the same.
func (s *Store) RevokeToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE extension_tokens SET revoked = 1 WHERE token = ?
	`, token)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// UpsertHeartbeat records extension liveness for a user.
func (s *Store) UpsertHeartbeat(ctx context.Context, userID, version, platform, browser string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extension_heartbeats (user_id, extension_version, platform, browser, last_seen_at, active)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(user_id) DO UPDATE SET
			extension_version = excluded.extension_version,
			platform = excluded.platform,
			browser = excluded.browser,
			last_seen_at = excluded.last_seen_at,
			active = 1
	`, userID, version, platform, browser, s.clock.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert heartbeat: %w", err)
	}
	return nil
}

func splitScopes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
