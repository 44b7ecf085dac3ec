// Package store provides durable SQLite storage for the extension gateway.
//
// It backs three of the gateway's shared mutable resources — replay records,
// idempotency records and the event log — plus the handler-side tables
// (tokens, heartbeats, imported products, sync jobs, settings).
//
// # Atomicity
//
// The correctness-critical operations (Remember, Begin) never use a plain
// read-then-write. First sight of a key is decided by a single
// INSERT ... ON CONFLICT DO NOTHING whose RowsAffected count distinguishes
// "inserted" from "already present"; reclaiming an expired row is a
// conditional UPDATE on expires_at that at most one concurrent caller can
// win. Two racing retries therefore can never both believe they own an
// execution.
package store
