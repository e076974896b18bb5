package pces

import "testing"

func TestCircuitBreakerOpensAfterThresholdFailures(t *testing.T) {
	cb := NewCircuitBreaker(3)
	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("expected circuit to allow request %d while closed", i)
		}
		cb.RecordFailure()
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v, want open after 3 failures", cb.State())
	}
	if cb.Allow() {
		t.Fatal("expected open circuit to reject requests")
	}
}

func TestCircuitBreakerRecordSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3)
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != CircuitClosed {
		t.Fatalf("state = %v, want closed (success should have reset the streak)", cb.State())
	}
}
