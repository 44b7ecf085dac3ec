package gateway

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Request is the transport-independent form of an inbound call: the identity
// headers plus the raw body. The HTTP layer fills it in; tests construct it
// directly.
type Request struct {
	RequestID        string
	ExtensionID      string
	ExtensionVersion string
	IdempotencyKey   string
	Token            string
	Body             []byte
}

// Envelope is the typed request body: which action to run, with what payload.
type Envelope struct {
	Action   string         `json:"action"`
	Payload  map[string]any `json:"payload"`
	Metadata Metadata       `json:"metadata"`
}

// Metadata carries optional client-reported context. It is opaque to the
// pipeline and handed through to handlers and the event log.
type Metadata struct {
	Platform  string `json:"platform,omitempty"`
	URL       string `json:"url,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Identity is the validated per-call identity extracted from headers.
//
// RequestID is unique per physical transmission attempt; IdempotencyKey (when
// present) is stable across all attempts of one logical operation. The two
// are deliberately distinct: RequestID feeds the replay guard, IdempotencyKey
// feeds the idempotency store.
type Identity struct {
	RequestID      string
	ExtensionID    string
	Version        Version
	IdempotencyKey string
	Token          string
}

const maxActionLength = 50

var tokenStrip = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// sanitizeToken normalizes a bearer credential: trims whitespace, strips
// characters outside [a-zA-Z0-9-_], and rejects implausible lengths.
// Returns "" when no usable token remains.
func sanitizeToken(raw string) string {
	s := tokenStrip.ReplaceAllString(strings.TrimSpace(raw), "")
	if len(s) < 10 || len(s) > 150 {
		return ""
	}
	return s
}

// parseIdentity validates the identity headers of req against the configured
// extension allow list. It fails with HEADER_INVALID before any state is
// touched, so garbage traffic cannot probe replay or idempotency state.
func parseIdentity(req Request, allowedExtensions []string) (Identity, *Error) {
	if req.RequestID == "" {
		return Identity{}, NewError(CodeHeaderInvalid, "Request-Id header required").
			WithDetail("hint", "set Request-Id to a UUID unique per transmission attempt")
	}
	if _, err := uuid.Parse(req.RequestID); err != nil {
		return Identity{}, NewError(CodeHeaderInvalid, "Request-Id must be a valid UUID").
			WithDetail("received", req.RequestID)
	}

	if req.ExtensionID == "" {
		return Identity{}, NewError(CodeHeaderInvalid, "Extension-Id header required")
	}
	if len(allowedExtensions) > 0 && !contains(allowedExtensions, req.ExtensionID) {
		return Identity{}, NewError(CodeHeaderInvalid, "unknown extension id").
			WithDetail("received", req.ExtensionID)
	}

	version, err := ParseVersion(req.ExtensionVersion)
	if err != nil {
		return Identity{}, NewError(CodeHeaderInvalid, "Extension-Version must be a semantic version").
			WithDetail("received", req.ExtensionVersion)
	}

	return Identity{
		RequestID:      req.RequestID,
		ExtensionID:    req.ExtensionID,
		Version:        version,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		Token:          sanitizeToken(req.Token),
	}, nil
}

// parseEnvelope decodes and validates the request body.
func parseEnvelope(body []byte) (Envelope, *Error) {
	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, NewError(CodeParseError, "request body must be a JSON object").
			WithDetail("hint", err.Error())
	}
	if env.Action == "" {
		return Envelope{}, NewError(CodeParseError, "action is required")
	}
	if len(env.Action) > maxActionLength {
		return Envelope{}, Errorf(CodeParseError, "action exceeds %d characters", maxActionLength)
	}
	if env.Payload == nil {
		env.Payload = map[string]any{}
	}
	return env, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
