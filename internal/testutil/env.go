package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/shopopti/extension-gateway/internal/actions"
	"github.com/shopopti/extension-gateway/internal/gateway"
	"github.com/shopopti/extension-gateway/internal/store"
)

// Defaults used by the builders; individual tests override via options.
const (
	ExtensionID      = "shopopti-extension"
	ExtensionVersion = "5.8.0"
	MinVersion       = "5.7.0"
	LatestVersion    = "5.8.1"
)

// Env is a fully wired gateway over a throwaway SQLite store with a frozen
// clock. Everything runs in-process; tests drive it through Handle.
type Env struct {
	Store   *store.Store
	Clock   *clock.Mock
	Limiter *gateway.RateLimiter
	Gateway *gateway.Gateway
	AI      *ScriptedAIClient

	waitTimeout time.Duration
}

// EnvOption adjusts the environment under construction.
type EnvOption func(*Env)

// WithWaitTimeout sets the in-flight wait bound.
func WithWaitTimeout(d time.Duration) EnvOption {
	return func(e *Env) { e.waitTimeout = d }
}

// NewEnv builds a gateway environment backed by a database under t.TempDir.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	mock := NewClock()
	st, err := store.Open(filepath.Join(t.TempDir(), "gateway.db"), store.WithClock(mock))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	env := &Env{
		Store:       st,
		Clock:       mock,
		Limiter:     gateway.NewRateLimiter(mock),
		AI:          &ScriptedAIClient{Response: "optimized output"},
		waitTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(env)
	}

	svc, err := actions.New(actions.Config{
		Store:         st,
		AI:            env.AI,
		MinVersion:    gateway.MustParseVersion(MinVersion),
		LatestVersion: gateway.MustParseVersion(LatestVersion),
		Clock:         mock,
		Logger:        slog.Default(),
	})
	require.NoError(t, err)

	registry := gateway.NewRegistry()
	require.NoError(t, svc.Register(registry))

	gw, err := gateway.New(gateway.Config{
		Registry:            registry,
		Auth:                st,
		Replay:              st,
		Idempotency:         st,
		Limiter:             env.Limiter,
		Events:              st,
		MinVersion:          gateway.MustParseVersion(MinVersion),
		LatestVersion:       gateway.MustParseVersion(LatestVersion),
		AllowedExtensionIDs: []string{ExtensionID},
		WaitTimeout:         env.waitTimeout,
		Clock:               mock,
		Logger:              slog.Default(),
	})
	require.NoError(t, err)
	env.Gateway = gw

	return env
}

// IssueToken seeds a token for userID and returns its opaque value.
func (e *Env) IssueToken(t *testing.T, userID string, scopes []string, plan string) string {
	t.Helper()
	tok, err := e.Store.IssueToken(context.Background(), userID, scopes, plan, 24*time.Hour)
	require.NoError(t, err)
	return tok.Token
}

// RequestID returns the nth deterministic request id.
func RequestID(n int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
}

// RequestOption adjusts a built request.
type RequestOption func(*gateway.Request)

// WithToken attaches a bearer token.
func WithToken(token string) RequestOption {
	return func(r *gateway.Request) { r.Token = token }
}

// WithIdempotencyKey attaches an idempotency key.
func WithIdempotencyKey(key string) RequestOption {
	return func(r *gateway.Request) { r.IdempotencyKey = key }
}

// WithRequestID overrides the generated request id.
func WithRequestID(id string) RequestOption {
	return func(r *gateway.Request) { r.RequestID = id }
}

// WithVersion overrides the extension version header.
func WithVersion(v string) RequestOption {
	return func(r *gateway.Request) { r.ExtensionVersion = v }
}

// WithExtensionID overrides the extension id header.
func WithExtensionID(id string) RequestOption {
	return func(r *gateway.Request) { r.ExtensionID = id }
}

// WithBody replaces the request body with raw bytes, for malformed input tests.
func WithBody(body []byte) RequestOption {
	return func(r *gateway.Request) { r.Body = body }
}

var requestCounter atomic.Int64

// NewRequest builds a valid request for action with the given payload.
// Request ids are deterministic and unique per call within a process.
func NewRequest(t *testing.T, action string, payload map[string]any, opts ...RequestOption) gateway.Request {
	t.Helper()

	n := int(requestCounter.Add(1))
	body, err := json.Marshal(map[string]any{
		"action":  action,
		"payload": payload,
		"metadata": map[string]any{
			"platform": "amazon",
		},
	})
	require.NoError(t, err)

	req := gateway.Request{
		RequestID:        RequestID(n),
		ExtensionID:      ExtensionID,
		ExtensionVersion: ExtensionVersion,
		Body:             body,
	}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}
