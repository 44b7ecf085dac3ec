package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopopti/extension-gateway/internal/gateway"
	"github.com/shopopti/extension-gateway/internal/testutil"
)

const testOrigin = "chrome-extension://abcdefghijklmnopqrstuvwxyzabcdef"

func newTestServer(t *testing.T) (*Server, http.Handler, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	srv := NewServer(Config{
		Gateway:        env.Gateway,
		AllowedOrigins: []string{"https://app.shopopti.io"},
		Registry:       prometheus.NewRegistry(),
	})
	return srv, srv.Router(), env
}

// do sends one gateway request over the HTTP surface.
func do(t *testing.T, router http.Handler, req gateway.Request) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/v1/gateway", bytes.NewReader(req.Body))
	r.Header.Set("Request-Id", req.RequestID)
	r.Header.Set("Extension-Id", req.ExtensionID)
	r.Header.Set("Extension-Version", req.ExtensionVersion)
	if req.IdempotencyKey != "" {
		r.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	if req.Token != "" {
		r.Header.Set("Extension-Token", req.Token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGatewaySuccess(t *testing.T) {
	_, router, _ := newTestServer(t)

	w := do(t, router, testutil.NewRequest(t, "CHECK_VERSION", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))

	body := decodeBody(t, w)
	assert.Equal(t, true, body["ok"])
	data := body["data"].(map[string]any)
	assert.Equal(t, testutil.ExtensionVersion, data["current"])
}

func TestGatewayStatusMapping(t *testing.T) {
	_, router, _ := newTestServer(t)

	cases := []struct {
		name       string
		req        gateway.Request
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown action",
			req:        testutil.NewRequest(t, "DO_EVERYTHING", nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNKNOWN_ACTION",
		},
		{
			name:       "missing request id",
			req:        testutil.NewRequest(t, "CHECK_VERSION", nil, testutil.WithRequestID("")),
			wantStatus: http.StatusBadRequest,
			wantCode:   "HEADER_INVALID",
		},
		{
			name:       "stale version",
			req:        testutil.NewRequest(t, "CHECK_VERSION", nil, testutil.WithVersion("1.0.0")),
			wantStatus: http.StatusUpgradeRequired,
			wantCode:   "VERSION_UNSUPPORTED",
		},
		{
			name:       "missing token",
			req:        testutil.NewRequest(t, "GET_SETTINGS", nil),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "malformed body",
			req:        testutil.NewRequest(t, "CHECK_VERSION", nil, testutil.WithBody([]byte("not json"))),
			wantStatus: http.StatusBadRequest,
			wantCode:   "PARSE_ERROR",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, router, tc.req)
			assert.Equal(t, tc.wantStatus, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tc.wantCode, body["code"])
		})
	}
}

func TestGatewayRateLimitResponse(t *testing.T) {
	_, router, _ := newTestServer(t)

	payload := map[string]any{"userId": "11111111-1111-4111-8111-111111111111"}
	var w *httptest.ResponseRecorder
	// AUTH_GENERATE_TOKEN allows 10 per hour for an anonymous extension.
	for i := 0; i < 11; i++ {
		w = do(t, router, testutil.NewRequest(t, "AUTH_GENERATE_TOKEN", payload))
	}

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	body := decodeBody(t, w)
	assert.Equal(t, "RATE_LIMITED", body["code"])
}

func TestGatewayBodyTooLarge(t *testing.T) {
	_, router, _ := newTestServer(t)

	huge := fmt.Sprintf(`{"action":"CHECK_VERSION","payload":{"pad":%q}}`, strings.Repeat("x", maxBodyBytes))
	w := do(t, router, testutil.NewRequest(t, "CHECK_VERSION", nil, testutil.WithBody([]byte(huge))))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "PARSE_ERROR", body["code"])
}

func TestHealthz(t *testing.T) {
	_, router, _ := newTestServer(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, gateway.GatewayVersion, body["gatewayVersion"])
}

func TestMetricsEndpoint(t *testing.T) {
	_, router, _ := newTestServer(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsDisabledWithoutRegistry(t *testing.T) {
	env := testutil.NewEnv(t)
	srv := NewServer(Config{Gateway: env.Gateway})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
