package pces

import (
	"sync"
	"time"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // normal operation
	CircuitHalfOpen                     // testing recovery
	CircuitOpen                         // rejecting flush requests
)

func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitHalfOpen:
		return "half_open"
	case CircuitOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreaker protects the PCES writer from hammering a failing
// downstream store with flush requests. Adapted from
// control_plane/scheduler/circuit_breaker.go: the original trips on queue
// depth and worker saturation, since a scheduler's overload signal is
// queue pressure; a writer's overload signal is its own call failures, so
// this version trips on consecutive failed writer calls instead
// (WriterComponent records a failure for SubmitFlushRequest and for
// LatestDurableSequenceNumber).
type CircuitBreaker struct {
	mu    sync.Mutex
	state CircuitState

	failureThreshold int
	cooldownPeriod   time.Duration
	testLimit        int

	consecutiveFailures int
	openedAt            time.Time
	testCount           int
}

// NewCircuitBreaker opens the circuit after failureThreshold consecutive
// failures, and allows a sample of testLimit requests through once
// cooldownPeriod has elapsed.
func NewCircuitBreaker(failureThreshold int) *CircuitBreaker {
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		cooldownPeriod:   30 * time.Second,
		testLimit:        5,
	}
}

// Allow reports whether a flush request should be attempted right now.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.openedAt) > cb.cooldownPeriod {
		cb.state = CircuitHalfOpen
		cb.testCount = 0
	}

	switch cb.state {
	case CircuitHalfOpen:
		if cb.testCount < cb.testLimit {
			cb.testCount++
			return true
		}
		return false
	case CircuitOpen:
		return false
	default:
		return true
	}
}

// RecordSuccess resets the failure count and closes the circuit if enough
// half-open test requests have now succeeded.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	if cb.state == CircuitHalfOpen && cb.testCount >= cb.testLimit {
		cb.state = CircuitClosed
	}
}

// RecordFailure counts a failure, opening (or re-opening) the circuit once
// failureThreshold consecutive failures have accumulated.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures++

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
		cb.openedAt = time.Now()
		cb.testCount = 0
		return
	}
	if cb.consecutiveFailures >= cb.failureThreshold {
		cb.state = CircuitOpen
		cb.openedAt = time.Now()
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
