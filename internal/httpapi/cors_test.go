package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginAllowed(t *testing.T) {
	s := &Server{allowedOrigins: []string{"https://app.shopopti.io"}}

	cases := []struct {
		origin string
		want   bool
	}{
		{"", false},
		{"https://app.shopopti.io", true},
		{"HTTPS://APP.SHOPOPTI.IO", true},
		{"https://evil.example.com", false},
		{testOrigin, true},
		{"chrome-extension://TOOSHORT", false},
		{"chrome-extension://abcdefghijklmnopqrstuvwxyzabcdef/page", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, s.originAllowed(tc.origin), "origin %q", tc.origin)
	}
}

func TestPreflightAllowed(t *testing.T) {
	_, router, _ := newTestServer(t)

	r := httptest.NewRequest(http.MethodOptions, "/v1/gateway", nil)
	r.Header.Set("Origin", testOrigin)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "idempotency-key")
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
}

func TestPreflightForbidden(t *testing.T) {
	_, router, _ := newTestServer(t)

	r := httptest.NewRequest(http.MethodOptions, "/v1/gateway", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestActualRequestGetsCORSHeaders(t *testing.T) {
	_, router, _ := newTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set("Origin", testOrigin)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))
}

func TestRequestWithoutOriginPassesThrough(t *testing.T) {
	_, router, _ := newTestServer(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
