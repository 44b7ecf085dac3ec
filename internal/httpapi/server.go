// Package httpapi exposes the gateway over HTTP: one POST endpoint for the
// envelope protocol plus health and metrics.
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopopti/extension-gateway/internal/gateway"
)

// maxBodyBytes bounds the request body; oversized bodies fail as PARSE_ERROR.
const maxBodyBytes = 1 << 20

// Server serves the gateway protocol.
type Server struct {
	gw             *gateway.Gateway
	allowedOrigins []string
	registry       *prometheus.Registry // optional
	log            *slog.Logger
}

// Config wires a Server.
type Config struct {
	Gateway        *gateway.Gateway
	AllowedOrigins []string
	Registry       *prometheus.Registry // optional; enables /metrics
	Logger         *slog.Logger         // optional
}

// NewServer builds a Server.
func NewServer(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		gw:             cfg.Gateway,
		allowedOrigins: cfg.AllowedOrigins,
		registry:       cfg.Registry,
		log:            log,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Post("/v1/gateway", s.handleGateway)
	r.Get("/healthz", s.handleHealth)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return r
}

// handleGateway adapts one HTTP request into the transport-independent form,
// runs the pipeline and writes the envelope back with the mapped status.
func (s *Server) handleGateway(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		s.writeError(w, gateway.NewError(gateway.CodeParseError, "failed to read request body"))
		return
	}
	if len(body) > maxBodyBytes {
		s.writeError(w, gateway.NewError(gateway.CodeParseError, "request body too large").
			WithDetail("maxBytes", maxBodyBytes))
		return
	}

	req := gateway.Request{
		RequestID:        r.Header.Get("Request-Id"),
		ExtensionID:      r.Header.Get("Extension-Id"),
		ExtensionVersion: r.Header.Get("Extension-Version"),
		IdempotencyKey:   r.Header.Get("Idempotency-Key"),
		Token:            r.Header.Get("Extension-Token"),
		Body:             body,
	}

	resp := s.gw.Handle(r.Context(), req)
	s.writeResponse(w, resp)
}

// writeResponse serializes a pipeline response. Rate-limit state is mirrored
// into headers so clients can back off without parsing the body.
func (s *Server) writeResponse(w http.ResponseWriter, resp *gateway.Response) {
	h := w.Header()
	h.Set("Content-Type", "application/json")

	if rl := resp.Meta.RateLimit; rl != nil {
		h.Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
		h.Set("X-RateLimit-Reset", rl.ResetAt)
	}

	status := http.StatusOK
	if !resp.OK {
		status = resp.Code.HTTPStatus()
		if status == http.StatusTooManyRequests {
			if retry, ok := resp.Details["retryAfter"].(int); ok {
				h.Set("Retry-After", strconv.Itoa(retry))
			}
		}
	}
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("write response", "error", err)
	}
}

// writeError short-circuits with a pipeline-shaped failure envelope for
// transport-level problems that never reach the pipeline.
func (s *Server) writeError(w http.ResponseWriter, ferr *gateway.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ferr.Code.HTTPStatus())

	resp := gateway.Response{
		OK:      false,
		Code:    ferr.Code,
		Message: ferr.Message,
		Details: ferr.Details,
		Meta: gateway.Meta{
			GatewayVersion: gateway.GatewayVersion,
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := json.NewEncoder(w).Encode(&resp); err != nil {
		s.log.Error("write error response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","gatewayVersion":"` + gateway.GatewayVersion + `"}`))
}
