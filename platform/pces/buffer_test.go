package pces

import (
	"sync"
	"testing"
	"time"

	"github.com/hgwiring/platform/platform/wiring"
)

func newTestModel() *wiring.Model {
	return wiring.NewModel(wiring.NewPool(2))
}

func TestDurabilityBufferHoldsRoundUntilKeystoneDurable(t *testing.T) {
	m := newTestModel()
	defer m.Stop()

	sched := wiring.NewSequentialScheduler("buffer", nil, true, nil)
	if err := m.RegisterScheduler(sched); err != nil {
		t.Fatal(err)
	}
	sched.Start()

	buf := NewDurabilityBuffer(sched, "buffer")

	handlerSched := wiring.NewSequentialScheduler("round-handler", nil, true, nil)
	if err := m.RegisterScheduler(handlerSched); err != nil {
		t.Fatal(err)
	}
	handlerSched.Start()
	defer handlerSched.Stop()
	defer sched.Stop()

	var mu sync.Mutex
	var delivered []ConsensusRound
	handlerIn := wiring.BindInputWire(handlerSched, "handler-in", func(r ConsensusRound) {
		mu.Lock()
		delivered = append(delivered, r)
		mu.Unlock()
	})
	wiring.SolderDefaultEdge(m, buf.Output(), handlerIn)

	buf.RoundInput().Put(ConsensusRound{RoundNumber: 1, KeystoneSequenceNumber: 1})
	sched.Counter().WaitUntilEmpty()

	mu.Lock()
	n := len(delivered)
	mu.Unlock()
	if n != 0 {
		t.Fatalf("round delivered before its keystone was durable: %d deliveries", n)
	}

	buf.DurableMarkInput().Put(1)
	sched.Counter().WaitUntilEmpty()
	handlerSched.Counter().WaitUntilEmpty()

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n = len(delivered)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for round to be released once durable")
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if delivered[0].RoundNumber != 1 {
		t.Fatalf("delivered = %v, want round 1", delivered)
	}
}

func TestDurabilityBufferReleasesImmediatelyWhenAlreadyDurable(t *testing.T) {
	m := newTestModel()
	defer m.Stop()

	sched := wiring.NewSequentialScheduler("buffer", nil, true, nil)
	if err := m.RegisterScheduler(sched); err != nil {
		t.Fatal(err)
	}
	sched.Start()
	defer sched.Stop()

	buf := NewDurabilityBuffer(sched, "buffer")

	var mu sync.Mutex
	var delivered []ConsensusRound
	handlerSched := wiring.NewSequentialScheduler("round-handler", nil, true, nil)
	if err := m.RegisterScheduler(handlerSched); err != nil {
		t.Fatal(err)
	}
	handlerSched.Start()
	defer handlerSched.Stop()
	handlerIn := wiring.BindInputWire(handlerSched, "handler-in", func(r ConsensusRound) {
		mu.Lock()
		delivered = append(delivered, r)
		mu.Unlock()
	})
	wiring.SolderDefaultEdge(m, buf.Output(), handlerIn)

	buf.DurableMarkInput().Put(5)
	sched.Counter().WaitUntilEmpty()

	buf.RoundInput().Put(ConsensusRound{RoundNumber: 2, KeystoneSequenceNumber: 3})
	sched.Counter().WaitUntilEmpty()
	handlerSched.Counter().WaitUntilEmpty()

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(delivered)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out: round with already-durable keystone should pass straight through")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDurabilityBufferIgnoresStaleDurableMark(t *testing.T) {
	sched := wiring.NewSequentialScheduler("buffer", nil, true, nil)
	sched.Start()
	defer sched.Stop()

	buf := NewDurabilityBuffer(sched, "buffer")

	buf.DurableMarkInput().Put(10)
	sched.Counter().WaitUntilEmpty()
	buf.DurableMarkInput().Put(3) // stale: must not regress latestDurable
	sched.Counter().WaitUntilEmpty()

	if buf.latestDurable != 10 {
		t.Fatalf("latestDurable = %d, want 10 (stale mark must be ignored)", buf.latestDurable)
	}
}
