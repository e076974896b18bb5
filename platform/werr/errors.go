// Package werr holds the typed errors raised by the wiring framework.
//
// Build errors and durability violations are fatal; reservation leaks are
// reported but never tear down the pipeline (spec §7).
package werr

import "fmt"

// BuildError is returned when the wire graph fails validation at build
// time: a cycle through a non-INJECT edge, a double bind, a reference to
// an unbuilt wire, or a missing handler.
type BuildError struct {
	Component string
	Reason    string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("wiring build error in %q: %s", e.Component, e.Reason)
}

// NewBuildError constructs a BuildError for the named component.
func NewBuildError(component, reason string) *BuildError {
	return &BuildError{Component: component, Reason: reason}
}

// ReservationLeak describes a reservable value disposed while its
// outstanding reservation count (Actual) differed from the expected count
// (Expected). It is logged and flagged, not fatal.
type ReservationLeak struct {
	Tag      string
	Expected int32
	Actual   int32
}

func (e *ReservationLeak) Error() string {
	return fmt.Sprintf("reservation leak on %q: expected %d outstanding reservations at dispose, observed %d", e.Tag, e.Expected, e.Actual)
}

// DurabilityViolation indicates a round reached the consensus round handler
// before its keystone event was marked durable by the PCES writer. This is
// an invariant breach and must panic (spec §7).
type DurabilityViolation struct {
	KeystoneSequenceNumber int64
	LatestDurableSequence  int64
}

func (e *DurabilityViolation) Error() string {
	return fmt.Sprintf("durability violation: keystone sequence %d delivered before latest durable sequence %d",
		e.KeystoneSequenceNumber, e.LatestDurableSequence)
}
