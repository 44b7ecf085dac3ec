package gateway

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Decision is the outcome of a rate-limit check, echoed into response meta
// regardless of whether the handler later succeeds.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type bucketKey struct {
	identity string
	category string
}

type bucket struct {
	count       int
	windowStart time.Time
}

// RateLimiter tracks request counts per (identity, action category) in fixed
// windows. Crossing a window boundary resets the count; the check and the
// increment happen under one lock so concurrent calls cannot both take the
// last slot.
//
// State is in-memory and per-process. Budgets are generous enough that a
// restart forgiving a partial window is acceptable; correctness within a
// window is what matters.
type RateLimiter struct {
	mu      sync.Mutex
	clock   clock.Clock
	buckets map[bucketKey]*bucket
}

// NewRateLimiter creates a limiter using clk for window arithmetic.
func NewRateLimiter(clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &RateLimiter{
		clock:   clk,
		buckets: make(map[bucketKey]*bucket),
	}
}

// Allow consumes one slot from the (identity, category) bucket with the given
// budget. When the budget is exhausted the call is denied with Remaining 0
// and the window's reset time; the counter is not advanced past the limit.
func (l *RateLimiter) Allow(identity, category string, limit int, window time.Duration) Decision {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	key := bucketKey{identity: identity, category: category}
	b, ok := l.buckets[key]
	if !ok || !now.Before(b.windowStart.Add(window)) {
		b = &bucket{windowStart: now}
		l.buckets[key] = b
	}
	resetAt := b.windowStart.Add(window)

	if b.count >= limit {
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}
	}
	b.count++
	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - b.count,
		ResetAt:   resetAt,
	}
}

// Sweep drops buckets whose window ended before now. Called periodically by
// the serve loop so idle identities do not accumulate forever.
func (l *RateLimiter) Sweep(maxWindow time.Duration) int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if !now.Before(b.windowStart.Add(maxWindow)) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}
