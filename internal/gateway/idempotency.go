package gateway

import (
	"context"
	"encoding/json"
	"sync"
)

// Outcome is the portion of a response that is stable across retries of one
// logical operation: everything except per-call meta. It is what the
// idempotency store persists and what a retry re-observes.
type Outcome struct {
	OK      bool           `json:"ok"`
	Code    Code           `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// EncodeOutcome serializes an outcome for storage.
func EncodeOutcome(o Outcome) ([]byte, error) {
	return json.Marshal(o)
}

// DecodeOutcome deserializes a stored outcome.
func DecodeOutcome(raw []byte) (Outcome, error) {
	var o Outcome
	err := json.Unmarshal(raw, &o)
	return o, err
}

// BeginResult reports the atomic insert-or-observe outcome of an idempotency
// key. Exactly one of three states holds:
//
//   - Started: the placeholder was inserted; this caller owns the execution
//     and must call Complete whatever happens.
//   - Done: a finished record exists; Outcome holds the stored response.
//   - neither: another execution holds the key in-flight.
type BeginResult struct {
	Started bool
	Done    bool
	Outcome []byte
}

// IdempotencyStore persists idempotency records, keyed by (key, userID): a
// key string only names an operation within one caller's namespace, so one
// caller can never observe another caller's stored outcome. Begin must be a
// single atomic check-and-insert: two concurrent callers presenting the same
// (key, userID) must never both observe Started. The sqlite-backed
// implementation lives in internal/store.
type IdempotencyStore interface {
	Begin(ctx context.Context, key, userID, action string) (BeginResult, error)
	Complete(ctx context.Context, key, userID string, outcome []byte) error

	// Abort removes a still in-flight placeholder. Used when a post-insert
	// pipeline stage (rate limiting) rejects the call before the handler
	// runs: the logical operation never executed, so a later retry under the
	// same key must get a fresh attempt.
	Abort(ctx context.Context, key, userID string) error
}

// inflightKey scopes the in-process waiter table the way the store scopes
// records: per caller identity, so two callers sharing a key string never
// wait on (or get failed fast by) each other's executions.
func inflightKey(owner, key string) string {
	return owner + "\x00" + key
}

// inflightTable coordinates waiters on in-flight idempotency keys within the
// process. The executing call registers a channel under its key; concurrent
// duplicates wait on the channel instead of racing past the store check.
type inflightTable struct {
	mu      sync.Mutex
	waiters map[string]chan struct{}
}

func newInflightTable() *inflightTable {
	return &inflightTable{waiters: make(map[string]chan struct{})}
}

// claimOwner registers a channel for key if none exists, reporting whether
// this call created it. The creator is the prospective owner of the
// execution; non-creators wait on the existing channel.
func (t *inflightTable) claimOwner(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.waiters[key]; ok {
		return false
	}
	t.waiters[key] = make(chan struct{})
	return true
}

// release closes and removes the channel for key, waking all waiters.
func (t *inflightTable) release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch, ok := t.waiters[key]; ok {
		close(ch)
		delete(t.waiters, key)
	}
}

// watch returns the channel to wait on for key, if an execution is in flight
// in this process. A missing channel means the in-flight record belongs to
// another process (or a crashed one); callers then fail fast rather than
// waiting on a signal that will never come.
func (t *inflightTable) watch(key string) (<-chan struct{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.waiters[key]
	return ch, ok
}
