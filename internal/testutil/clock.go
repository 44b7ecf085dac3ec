// Package testutil provides shared helpers for gateway tests: a frozen mock
// clock, request builders and a fully wired in-memory gateway environment.
package testutil

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Epoch is the fixed instant test clocks start at. Freezing time makes
// response timestamps and rate-limit windows reproducible.
var Epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// NewClock returns a mock clock frozen at Epoch.
func NewClock() *clock.Mock {
	mock := clock.NewMock()
	mock.Set(Epoch)
	return mock
}
