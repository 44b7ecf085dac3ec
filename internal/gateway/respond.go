package gateway

import (
	"time"
)

// Meta is attached to every response, success or failure. RequestID always
// echoes the inbound identity; RateLimit is present once the pipeline has
// reached the rate limiter.
type Meta struct {
	GatewayVersion string         `json:"gatewayVersion"`
	Timestamp      string         `json:"timestamp"`
	RequestID      string         `json:"requestId"`
	Action         string         `json:"action,omitempty"`
	DurationMs     int64          `json:"durationMs"`
	RateLimit      *RateLimitMeta `json:"rateLimit,omitempty"`
}

// RateLimitMeta is the rate-limit snapshot echoed to the client.
type RateLimitMeta struct {
	Remaining int    `json:"remaining"`
	ResetAt   string `json:"resetAt"`
}

// Response is the uniform envelope returned for every call.
// Code is present iff OK is false.
type Response struct {
	OK      bool           `json:"ok"`
	Code    Code           `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Meta    Meta           `json:"meta"`
	Details map[string]any `json:"details,omitempty"`
}

// responder assembles envelopes for one call, accumulating the meta fields
// the pipeline learns along the way (action name, rate-limit snapshot).
type responder struct {
	start     time.Time
	now       func() time.Time
	requestID string
	action    string
	rate      *RateLimitMeta
}

func (r *responder) setAction(action string) { r.action = action }

func (r *responder) setRate(d Decision) {
	r.rate = &RateLimitMeta{
		Remaining: d.Remaining,
		ResetAt:   d.ResetAt.UTC().Format(time.RFC3339),
	}
}

func (r *responder) meta() Meta {
	now := r.now()
	return Meta{
		GatewayVersion: GatewayVersion,
		Timestamp:      now.UTC().Format(time.RFC3339),
		RequestID:      r.requestID,
		Action:         r.action,
		DurationMs:     now.Sub(r.start).Milliseconds(),
		RateLimit:      r.rate,
	}
}

// success builds an ok response around the handler's data.
func (r *responder) success(data any) *Response {
	return &Response{OK: true, Data: data, Meta: r.meta()}
}

// failure builds an error response from a typed failure.
func (r *responder) failure(err *Error) *Response {
	return &Response{
		OK:      false,
		Code:    err.Code,
		Message: err.Message,
		Details: err.Details,
		Meta:    r.meta(),
	}
}

// replayed rebuilds a response from a stored outcome: data, code and details
// are the original execution's, while meta reflects the current call.
func (r *responder) replayed(o Outcome) *Response {
	return &Response{
		OK:      o.OK,
		Code:    o.Code,
		Message: o.Message,
		Data:    o.Data,
		Details: o.Details,
		Meta:    r.meta(),
	}
}

// outcomeOf extracts the retry-stable portion of a response for storage.
func outcomeOf(resp *Response) Outcome {
	return Outcome{
		OK:      resp.OK,
		Code:    resp.Code,
		Message: resp.Message,
		Data:    resp.Data,
		Details: resp.Details,
	}
}
