// Package reservation implements the reference-counting discipline used by
// reservable values that cross an advanced transformer (spec §3
// "Reservation discipline"). A Handle is a tagged variant plus an atomic
// reference count: callers reserve before use and release when done; the
// advanced transformer increments the count by fanOut-1 before fanning a
// value out to N sinks so each downstream releases exactly once.
//
// Grounded on control_plane/resilience/reconciliation.go's non-fatal
// success/skip/fail accounting: a leak here is logged and flagged, never
// fatal, matching spec §7's "Reservation leak" taxonomy entry.
package reservation

import (
	"log"
	"sync/atomic"

	"github.com/hgwiring/platform/platform/metrics"
	"github.com/hgwiring/platform/platform/werr"
)

// LeakReporter receives leaked handles at Dispose time. Tests may supply
// their own to assert on leaks instead of scraping log output.
type LeakReporter func(tag string, expected, actual int32)

var defaultReporter LeakReporter = func(tag string, expected, actual int32) {
	metrics.ReservationLeaks.WithLabelValues(tag).Inc()
	log.Print("[RESERVATION] " + (&werr.ReservationLeak{Tag: tag, Expected: expected, Actual: actual}).Error())
}

// Handle is an atomic reference count guarding a single reservable value.
// The zero value is not usable; construct with New.
type Handle struct {
	tag      string
	count    int32
	reporter LeakReporter
}

// New returns a Handle for a value identified by tag (used only for
// diagnostics), already reserved once by its creator.
func New(tag string) *Handle {
	return &Handle{tag: tag, count: 1, reporter: defaultReporter}
}

// NewWithReporter is New but lets the caller observe leaks directly,
// primarily for tests.
func NewWithReporter(tag string, reporter LeakReporter) *Handle {
	h := New(tag)
	h.reporter = reporter
	return h
}

// Reserve adds n additional holders. An advanced transformer with fanOut
// sinks calls Reserve(fanOut - 1) before forwarding to every sink, so each
// sink's single Release call balances exactly one reservation.
func (h *Handle) Reserve(n int32) {
	if n == 0 {
		return
	}
	atomic.AddInt32(&h.count, n)
}

// Release drops one holder. It never panics on over-release; the
// resulting negative count is instead surfaced by Dispose as a leak-style
// diagnostic, since an over-release is as much a discipline violation as
// an under-release.
func (h *Handle) Release() {
	atomic.AddInt32(&h.count, -1)
}

// Count returns the current outstanding reservation count.
func (h *Handle) Count() int32 {
	return atomic.LoadInt32(&h.count)
}

// Dispose is called when the underlying value is actually freed. If the
// count isn't exactly zero, it reports a leak (too few releases) or an
// over-release (too many) without aborting the pipeline.
func (h *Handle) Dispose() {
	if c := atomic.LoadInt32(&h.count); c != 0 {
		h.reporter(h.tag, 0, c)
	}
}
