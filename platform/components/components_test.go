package components

import (
	"context"
	"errors"
	"testing"

	"github.com/hgwiring/platform/platform/wiring"
)

func TestDeduplicatorDropsRepeats(t *testing.T) {
	d := NewDefaultDeduplicator()
	h := HashedEvent{Hash: [32]byte{1, 2, 3}}

	if d.IsDuplicate(h) {
		t.Fatal("first occurrence reported as duplicate")
	}
	if !d.IsDuplicate(h) {
		t.Fatal("second occurrence not detected as duplicate")
	}

	d.Clear()
	if d.IsDuplicate(h) {
		t.Fatal("hash still considered seen after Clear")
	}
}

func TestDeduplicatorDescriptorWiresClearAndWindow(t *testing.T) {
	d := NewDefaultDeduplicator()
	desc := d.Descriptor("deduplicator")

	h := HashedEvent{Hash: [32]byte{9}}
	d.IsDuplicate(h)

	desc.CallSetEventWindow(EventWindow{LowerBound: 1, UpperBound: 2})
	if d.window.UpperBound != 2 {
		t.Fatalf("window not applied via descriptor: got %+v", d.window)
	}

	desc.CallClear()
	if d.IsDuplicate(h) {
		t.Fatal("descriptor's Clear hook did not reset seen set")
	}
}

func TestSignatureValidatorAssignsIncreasingSequenceNumbers(t *testing.T) {
	v := &DefaultSignatureValidator{}
	h := HashedEvent{}

	first, ok := v.Validate(h)
	if !ok {
		t.Fatal("expected validation to succeed")
	}
	second, _ := v.Validate(h)
	if second.SequenceNumber <= first.SequenceNumber {
		t.Fatalf("sequence numbers not increasing: %d then %d", first.SequenceNumber, second.SequenceNumber)
	}
}

type fakeSequencer struct {
	next int64
	err  error
}

func (f *fakeSequencer) NextSequenceNumber(ctx context.Context, eventID string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.next++
	return f.next * 100, nil
}

func TestSignatureValidatorUsesLedgerWhenPresent(t *testing.T) {
	v := NewDefaultSignatureValidator(&fakeSequencer{})
	h := HashedEvent{Event: Event{ID: "e1"}}

	got, ok := v.Validate(h)
	if !ok {
		t.Fatal("expected validation to succeed")
	}
	if got.SequenceNumber != 100 {
		t.Fatalf("SequenceNumber = %d, want 100 (from the ledger, not the in-memory counter)", got.SequenceNumber)
	}
}

func TestSignatureValidatorFallsBackToCounterOnLedgerError(t *testing.T) {
	v := NewDefaultSignatureValidator(&fakeSequencer{err: errors.New("ledger unavailable")})
	h := HashedEvent{Event: Event{ID: "e1"}}

	first, ok := v.Validate(h)
	if !ok {
		t.Fatal("expected validation to succeed despite ledger error")
	}
	second, _ := v.Validate(h)
	if second.SequenceNumber <= first.SequenceNumber {
		t.Fatalf("expected increasing fallback sequence numbers, got %d then %d", first.SequenceNumber, second.SequenceNumber)
	}
}

func TestConsensusEngineEmitsRoundOnFullBatch(t *testing.T) {
	m := wiring.NewModel(wiring.NewPool(2))
	defer m.Stop()

	sched := wiring.NewSequentialScheduler("engine", nil, true, nil)
	if err := m.RegisterScheduler(sched); err != nil {
		t.Fatal(err)
	}
	sched.Start()
	defer sched.Stop()

	out := wiring.NewOutputWire[Round](sched, "engine-out")
	var got []Round
	sinkSched := wiring.NewSequentialScheduler("sink", nil, true, nil)
	if err := m.RegisterScheduler(sinkSched); err != nil {
		t.Fatal(err)
	}
	sinkSched.Start()
	defer sinkSched.Stop()
	sinkIn := wiring.BindInputWire(sinkSched, "sink-in", func(r Round) { got = append(got, r) })
	wiring.SolderDefaultEdge(m, out, sinkIn)

	engine := NewDefaultConsensusEngine(out, 2)
	engine.AddEvent(ValidatedEvent{SequenceNumber: 1})
	sinkSched.Counter().WaitUntilEmpty()
	if len(got) != 0 {
		t.Fatalf("round emitted before batch was full: %v", got)
	}

	engine.AddEvent(ValidatedEvent{SequenceNumber: 2})
	sinkSched.Counter().WaitUntilEmpty()
	if len(got) != 1 {
		t.Fatalf("got %d rounds, want 1", len(got))
	}
	if got[0].KeystoneSequenceNumber != 2 {
		t.Fatalf("keystone = %d, want 2 (last event in batch)", got[0].KeystoneSequenceNumber)
	}
}

func TestStateSignatureCollectorReachesQuorum(t *testing.T) {
	c := NewDefaultStateSignatureCollector(2)

	if c.Collect(StateSignature{Round: 1, NodeID: "a"}) {
		t.Fatal("quorum reached with only one signer")
	}
	if !c.Collect(StateSignature{Round: 1, NodeID: "b"}) {
		t.Fatal("expected quorum reached with two distinct signers")
	}
	// Same signer again must not double-count.
	if !c.Collect(StateSignature{Round: 1, NodeID: "a"}) {
		t.Fatal("expected quorum to remain satisfied on a repeat signer")
	}
}

func TestISSDetectorFlagsMismatchOnSameRound(t *testing.T) {
	d := &DefaultISSDetector{}
	self := StateHash{Round: 5, Hash: [32]byte{1}}
	agree := StateHash{Round: 5, Hash: [32]byte{1}}
	disagree := StateHash{Round: 5, Hash: [32]byte{2}}
	otherRound := StateHash{Round: 6, Hash: [32]byte{2}}

	if d.Check(self, agree) {
		t.Fatal("matching hashes reported as ISS")
	}
	if !d.Check(self, disagree) {
		t.Fatal("mismatched hashes on the same round not detected")
	}
	if d.Check(self, otherRound) {
		t.Fatal("different rounds should never be compared as ISS")
	}
}

func TestEventWindowManagerAdvancesAndClampsAtZero(t *testing.T) {
	m := NewDefaultEventWindowManager(10)

	w := m.Advance(Round{KeystoneSequenceNumber: 15})
	if w.LowerBound != 5 || w.UpperBound != 15 {
		t.Fatalf("window = %+v, want {5 15}", w)
	}

	w = m.Advance(Round{KeystoneSequenceNumber: 3})
	if w.LowerBound != 0 {
		t.Fatalf("lower bound = %d, want clamped to 0", w.LowerBound)
	}
}
