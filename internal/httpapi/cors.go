package httpapi

import (
	"net/http"
	"regexp"
	"strings"
)

// chromeExtensionOrigin matches the origin a packed browser extension sends.
var chromeExtensionOrigin = regexp.MustCompile(`^chrome-extension://[a-z]{32}$`)

const allowedHeaders = "content-type, extension-token, extension-version, extension-id, request-id, idempotency-key"

// originAllowed reports whether an Origin value may talk to the gateway.
func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range s.allowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return chromeExtensionOrigin.MatchString(origin)
}

// cors handles preflight and stamps CORS headers on actual requests.
// Requests without an Origin header (curl, server-to-server) pass through
// untouched.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if r.Method == http.MethodOptions {
			if !s.originAllowed(origin) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", allowedHeaders)
			h.Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Vary", "Origin")
		}
		next.ServeHTTP(w, r)
	})
}
