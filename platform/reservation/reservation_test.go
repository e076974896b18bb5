package reservation

import "testing"

func TestDisposeBalancedHandleReportsNothing(t *testing.T) {
	var reported bool
	h := NewWithReporter("t1", func(tag string, expected, actual int32) { reported = true })
	h.Release()
	h.Dispose()
	if reported {
		t.Fatal("expected no leak report for a balanced handle")
	}
}

func TestDisposeUnreleasedHandleReportsLeak(t *testing.T) {
	var gotTag string
	var gotActual int32
	h := NewWithReporter("t2", func(tag string, expected, actual int32) {
		gotTag, gotActual = tag, actual
	})
	h.Dispose()
	if gotTag != "t2" || gotActual != 1 {
		t.Fatalf("got (%q, %d), want (\"t2\", 1)", gotTag, gotActual)
	}
}

func TestReserveFanOutBalancesAcrossSinks(t *testing.T) {
	var reported bool
	h := NewWithReporter("fanout", func(tag string, expected, actual int32) { reported = true })
	const sinks = 3
	h.Reserve(sinks - 1)
	for i := 0; i < sinks; i++ {
		h.Release()
	}
	h.Dispose()
	if reported {
		t.Fatal("expected a fanned-out handle released by every sink to balance cleanly")
	}
}

func TestDisposeOverReleasedHandleReportsNegativeCount(t *testing.T) {
	var gotActual int32
	h := NewWithReporter("over", func(tag string, expected, actual int32) { gotActual = actual })
	h.Release()
	h.Release()
	h.Dispose()
	if gotActual != -1 {
		t.Fatalf("got actual=%d, want -1", gotActual)
	}
}
