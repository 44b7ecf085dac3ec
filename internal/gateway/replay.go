package gateway

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// ReplayGuard rejects literal network-level re-delivery of the same request.
//
// Remember atomically records a request id on first sight and reports whether
// it was new. It is intentionally narrower than idempotency: it catches the
// same bytes arriving twice (proxy retransmits), not a client deliberately
// retrying a logical operation under a fresh request id.
type ReplayGuard interface {
	Remember(ctx context.Context, requestID, extensionID, action string) (first bool, err error)
}

// MemoryReplayGuard is the in-process replay guard: an expirable LRU of
// request ids with a minutes-scale TTL. Entries age out on their own; the LRU
// bound protects memory if a client floods unique ids.
type MemoryReplayGuard struct {
	mu    sync.Mutex
	cache *lru.LRU[string, struct{}]
}

// NewMemoryReplayGuard creates a guard holding at most maxEntries ids, each
// expiring after ttl.
func NewMemoryReplayGuard(maxEntries int, ttl time.Duration) *MemoryReplayGuard {
	if maxEntries <= 0 {
		maxEntries = 100_000
	}
	return &MemoryReplayGuard{
		cache: lru.NewLRU[string, struct{}](maxEntries, nil, ttl),
	}
}

// Remember implements ReplayGuard. The mutex makes the check-and-insert a
// single atomic step; two concurrent deliveries of the same id cannot both
// observe "first".
func (g *MemoryReplayGuard) Remember(_ context.Context, requestID, _, _ string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.cache.Get(requestID); ok {
		return false, nil
	}
	g.cache.Add(requestID, struct{}{})
	return true, nil
}
