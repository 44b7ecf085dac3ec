// Package gateway implements the extension gateway pipeline: the single
// ingress point through which browser-extension installs issue operations
// against the backend.
//
// # Pipeline
//
// Every call runs the same linear pipeline:
//
//	parse headers → parse body → version gate → auth → replay guard
//	  → idempotency (short-circuit on hit) → rate limit → dispatch
//	  → idempotency write → response envelope
//
// Each stage can terminate the call with a typed failure from a closed
// taxonomy; nothing is silently swallowed.
//
// # At-most-once execution
//
// The single most important property of this package: for a given
// idempotency key, the handler executes at most once, under any interleaving
// of concurrent retries. Two mechanisms enforce it:
//
//  1. The idempotency store's Begin is a single atomic check-and-insert
//     (INSERT ... ON CONFLICT DO NOTHING in the sqlite implementation), so
//     two concurrent callers can never both start an execution.
//  2. Late arrivals for an in-flight key wait on an in-process channel
//     registered by the executing call, bounded by a timeout, then re-read
//     the stored outcome — they observe the same data the first caller got.
//
// The replay guard is deliberately narrower: it rejects the same physical
// transmission arriving twice (same request id), not a client intentionally
// retrying a logical operation under a fresh request id.
package gateway
