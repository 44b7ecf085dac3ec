package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// Event is the terminal outcome of one call, recorded for observability.
type Event struct {
	RequestID        string
	UserID           string
	Action           string
	Status           string // "success" | "error"
	ErrorCode        string
	ErrorMessage     string
	DurationMs       int64
	ExtensionID      string
	ExtensionVersion string
	Platform         string
}

// EventRecorder persists gateway events. Recording failures are logged, never
// surfaced to the client.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev Event) error
}

// Config wires a Gateway's collaborators and policy knobs.
type Config struct {
	Registry    *Registry
	Auth        TokenResolver
	Replay      ReplayGuard
	Idempotency IdempotencyStore
	Limiter     *RateLimiter
	Events      EventRecorder // optional

	// MinVersion rejects older clients before any state mutation.
	MinVersion Version
	// LatestVersion is advertised to outdated clients.
	LatestVersion Version
	// AllowedExtensionIDs restricts Extension-Id; empty allows any.
	AllowedExtensionIDs []string
	// WaitTimeout bounds waiting on an in-flight idempotency record.
	WaitTimeout time.Duration

	Clock   clock.Clock   // optional, defaults to wall clock
	Logger  *slog.Logger  // optional
	Metrics *Metrics      // optional
}

const defaultWaitTimeout = 10 * time.Second

// Gateway is the single ingress point for extension calls. Each request runs
// the linear pipeline: parse, version gate, auth, replay guard, idempotency,
// rate limit, dispatch, finalize. Every stage can terminate the pipeline with
// a typed failure; every failure produces an envelope with a code.
type Gateway struct {
	registry    *Registry
	auth        TokenResolver
	replay      ReplayGuard
	idem        IdempotencyStore
	limiter     *RateLimiter
	events      EventRecorder
	minVersion  Version
	latest      Version
	allowedExts []string
	waitTimeout time.Duration
	clock       clock.Clock
	log         *slog.Logger
	metrics     *Metrics
	inflight    *inflightTable
}

// New validates cfg and builds a Gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("gateway: registry is required")
	}
	if cfg.Auth == nil {
		return nil, fmt.Errorf("gateway: token resolver is required")
	}
	if cfg.Replay == nil {
		return nil, fmt.Errorf("gateway: replay guard is required")
	}
	if cfg.Idempotency == nil {
		return nil, fmt.Errorf("gateway: idempotency store is required")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("gateway: rate limiter is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	waitTimeout := cfg.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	return &Gateway{
		registry:    cfg.Registry,
		auth:        cfg.Auth,
		replay:      cfg.Replay,
		idem:        cfg.Idempotency,
		limiter:     cfg.Limiter,
		events:      cfg.Events,
		minVersion:  cfg.MinVersion,
		latest:      cfg.LatestVersion,
		allowedExts: cfg.AllowedExtensionIDs,
		waitTimeout: waitTimeout,
		clock:       clk,
		log:         log,
		metrics:     cfg.Metrics,
		inflight:    newInflightTable(),
	}, nil
}

// Handle runs the full pipeline for one call and always returns a response
// envelope. It never panics outward and never returns nil.
func (g *Gateway) Handle(ctx context.Context, req Request) *Response {
	r := &responder{start: g.clock.Now(), now: g.clock.Now, requestID: req.RequestID}

	resp, ev := g.handle(ctx, req, r)

	if g.metrics != nil {
		g.metrics.observe(ev.Action, resp.Code, time.Duration(resp.Meta.DurationMs)*time.Millisecond)
	}
	if g.events != nil {
		if err := g.events.RecordEvent(ctx, ev); err != nil {
			g.log.Error("record gateway event", "requestId", ev.RequestID, "error", err)
		}
	}
	return resp
}

// handle is the pipeline proper. It returns the response plus the event row
// describing the terminal outcome.
func (g *Gateway) handle(ctx context.Context, req Request, r *responder) (*Response, Event) {
	ev := Event{
		RequestID:        req.RequestID,
		ExtensionID:      req.ExtensionID,
		ExtensionVersion: req.ExtensionVersion,
	}
	fail := func(ferr *Error) (*Response, Event) {
		g.metrics.reject(ferr.Code)
		ev.Status = "error"
		ev.ErrorCode = string(ferr.Code)
		ev.ErrorMessage = ferr.Message
		resp := r.failure(ferr)
		ev.DurationMs = resp.Meta.DurationMs
		g.log.Info("request rejected",
			"requestId", req.RequestID, "action", ev.Action, "code", ferr.Code)
		return resp, ev
	}

	// Stage 1: identity headers.
	id, ferr := parseIdentity(req, g.allowedExts)
	if ferr != nil {
		return fail(ferr)
	}

	// Stage 2: body envelope.
	env, ferr := parseEnvelope(req.Body)
	if ferr != nil {
		return fail(ferr)
	}
	r.setAction(env.Action)
	ev.Action = env.Action
	ev.Platform = env.Metadata.Platform

	// Stage 3: version gate. An outdated client must never consume rate-limit
	// budget or poison the idempotency cache.
	if id.Version.Before(g.minVersion) {
		return fail(NewError(CodeVersionUnsupported, "extension update required").
			WithDetail("minimumVersion", g.minVersion.String()).
			WithDetail("latestVersion", g.latest.String()))
	}

	// Stage 4: action lookup. Resolved before auth so the per-action token and
	// scope requirements are known.
	spec, ok := g.registry.Lookup(env.Action)
	if !ok {
		return fail(NewError(CodeUnknownAction, "unknown action").
			WithDetail("action", env.Action))
	}

	// Stage 5: auth.
	caller, ferr := g.resolveCaller(ctx, spec, id)
	if ferr != nil {
		return fail(ferr)
	}
	ev.UserID = caller.UserID

	// Stage 6: replay guard.
	first, err := g.replay.Remember(ctx, id.RequestID, id.ExtensionID, env.Action)
	if err != nil {
		return fail(Errorf(CodeInternal, "replay check failed: %v", err))
	}
	if !first {
		return fail(NewError(CodeDuplicateRequest, "request already processed").
			WithDetail("requestId", id.RequestID))
	}

	// Stage 7: idempotency.
	if spec.Write && id.IdempotencyKey == "" {
		return fail(NewError(CodeHeaderInvalid, "Idempotency-Key header required for write actions").
			WithDetail("action", env.Action))
	}
	ownsKey := false
	idemOwner := caller.RateKey()
	if id.IdempotencyKey != "" {
		started, stored, ferr := g.beginIdempotent(ctx, id.IdempotencyKey, idemOwner, env.Action)
		if ferr != nil {
			return fail(ferr)
		}
		if !started {
			ev.Status = "success"
			resp := r.replayed(*stored)
			ev.DurationMs = resp.Meta.DurationMs
			if !resp.OK {
				ev.Status = "error"
				ev.ErrorCode = string(resp.Code)
				ev.ErrorMessage = resp.Message
			}
			g.log.Info("idempotent replay served",
				"requestId", id.RequestID, "action", env.Action, "key", id.IdempotencyKey)
			return resp, ev
		}
		// This call owns the execution; the record must reach "done" (or be
		// aborted) whatever happens below.
		ownsKey = true
		defer g.inflight.release(inflightKey(idemOwner, id.IdempotencyKey))
	}

	// Stage 8: rate limit. A denial here precedes the handler, so an owned
	// placeholder is rolled back rather than remembered: the logical
	// operation never ran and a retry after the window deserves a fresh
	// attempt.
	decision := g.limiter.Allow(caller.RateKey(), spec.Category, spec.Limit, spec.Window)
	r.setRate(decision)
	if !decision.Allowed {
		if ownsKey {
			if err := g.idem.Abort(context.WithoutCancel(ctx), id.IdempotencyKey, idemOwner); err != nil {
				g.log.Error("abort idempotency record", "key", id.IdempotencyKey, "error", err)
			}
		}
		return fail(NewError(CodeRateLimited, "rate limit exceeded").
			WithDetail("retryAfter", int(decision.ResetAt.Sub(g.clock.Now()).Seconds())))
	}

	// Stage 9: dispatch. The handler keeps running if the transport
	// disconnects; an abandoned client must not leave the key in flight.
	hreq := HandlerRequest{
		Action:   env.Action,
		Payload:  env.Payload,
		Metadata: env.Metadata,
		Caller:   caller,
		Identity: id,
	}
	g.metrics.handlerStarted()
	data, herr := g.dispatch(context.WithoutCancel(ctx), spec, hreq)
	g.metrics.handlerFinished()

	var resp *Response
	if herr != nil {
		resp = r.failure(asError(herr))
		ev.Status = "error"
		ev.ErrorCode = string(resp.Code)
		ev.ErrorMessage = resp.Message
	} else {
		resp = r.success(data)
		ev.Status = "success"
	}
	ev.DurationMs = resp.Meta.DurationMs

	// Stage 10: finalize. Failures are remembered too, so a retried doomed
	// operation is not blindly re-attempted.
	g.finishIdempotent(ctx, id.IdempotencyKey, idemOwner, resp)

	g.log.Info("request handled",
		"requestId", id.RequestID, "action", env.Action,
		"status", ev.Status, "durationMs", ev.DurationMs)
	return resp, ev
}

// dispatch invokes the handler, converting panics into typed failures so one
// broken handler cannot take the process down.
func (g *Gateway) dispatch(ctx context.Context, spec ActionSpec, req HandlerRequest) (data any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			g.log.Error("handler panic", "action", spec.Name, "panic", rec)
			data = nil
			err = Errorf(CodeInternal, "handler panic: %v", rec)
		}
	}()
	return spec.Handler(ctx, req)
}

// beginIdempotent resolves an idempotency key to one of: this call executes
// (started), a stored outcome to replay, or a typed failure. Waiting on an
// in-flight execution is bounded by the configured timeout. Both the store
// record and the local waiter entry are scoped by the caller identity.
func (g *Gateway) beginIdempotent(ctx context.Context, key, owner, action string) (started bool, stored *Outcome, ferr *Error) {
	deadline := g.clock.Now().Add(g.waitTimeout)
	local := inflightKey(owner, key)

	for {
		owned := g.inflight.claimOwner(local)

		res, err := g.idem.Begin(ctx, key, owner, action)
		if err != nil {
			if owned {
				g.inflight.release(local)
			}
			return false, nil, Errorf(CodeInternal, "idempotency check failed: %v", err)
		}

		switch {
		case res.Started:
			return true, nil, nil

		case res.Done:
			if owned {
				g.inflight.release(local)
			}
			o, err := DecodeOutcome(res.Outcome)
			if err != nil {
				return false, nil, Errorf(CodeInternal, "stored response unreadable: %v", err)
			}
			return false, &o, nil

		default:
			// In flight. If this call created the waiter channel, the record
			// belongs to another process (or a crash); there is nothing local
			// to wait on.
			if owned {
				g.inflight.release(local)
				return false, nil, NewError(CodeOperationInProgress, "operation already in progress").
					WithDetail("idempotencyKey", key)
			}
			ch, ok := g.inflight.watch(local)
			if !ok {
				// Released between Begin and watch; re-check the store.
				continue
			}
			remaining := deadline.Sub(g.clock.Now())
			if remaining <= 0 {
				return false, nil, NewError(CodeOperationInProgress, "timed out waiting for in-flight operation").
					WithDetail("idempotencyKey", key)
			}
			timer := g.clock.Timer(remaining)
			select {
			case <-ch:
				timer.Stop()
				// Execution finished; loop to read the stored outcome.
			case <-timer.C:
				return false, nil, NewError(CodeOperationInProgress, "timed out waiting for in-flight operation").
					WithDetail("idempotencyKey", key)
			case <-ctx.Done():
				timer.Stop()
				return false, nil, NewError(CodeOperationInProgress, "caller cancelled while operation in progress").
					WithDetail("idempotencyKey", key)
			}
		}
	}
}

// finishIdempotent stores the final outcome under the caller's key. A no-op
// without a key.
func (g *Gateway) finishIdempotent(ctx context.Context, key, owner string, resp *Response) {
	if key == "" {
		return
	}
	raw, err := EncodeOutcome(outcomeOf(resp))
	if err != nil {
		g.log.Error("encode idempotent outcome", "key", key, "error", err)
		return
	}
	// Completion must survive transport cancellation.
	if err := g.idem.Complete(context.WithoutCancel(ctx), key, owner, raw); err != nil {
		g.log.Error("complete idempotency record", "key", key, "error", err)
	}
}
