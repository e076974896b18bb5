package wiring

import (
	"sync"
	"testing"
	"time"
)

func TestSequentialSchedulerFIFO(t *testing.T) {
	sched := NewSequentialScheduler("seq", nil, true, nil)
	sched.Start()
	defer sched.Stop()

	var mu sync.Mutex
	var order []int
	in := BindInputWire(sched, "in", func(v int) {
		mu.Lock()
		order = append(order, v)
		mu.Unlock()
		time.Sleep(time.Millisecond)
	})

	for i := 0; i < 5; i++ {
		in.Put(i)
	}
	sched.Counter().WaitUntilEmpty()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 5 {
		t.Fatalf("got %d deliveries, want 5", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want %d (FIFO violated)", i, v, i)
		}
	}
}

func TestSequentialSchedulerBackpressureBlocksUpstream(t *testing.T) {
	counter := NewBackpressuringTaskCounter(2, time.Millisecond)
	sched := NewSequentialScheduler("seq", counter, true, nil)

	release := make(chan struct{})
	var started int
	var mu sync.Mutex
	in := BindInputWire(sched, "in", func(v int) {
		mu.Lock()
		started++
		mu.Unlock()
		<-release
	})
	sched.Start()
	defer sched.Stop()

	// Fill capacity with two tasks that block in-handler.
	go in.Put(1)
	go in.Put(2)
	time.Sleep(20 * time.Millisecond)

	proceeded := make(chan struct{})
	go func() {
		in.Put(3) // should block: counter at capacity
		close(proceeded)
	}()

	select {
	case <-proceeded:
		t.Fatal("third Put proceeded while scheduler was at capacity")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)

	select {
	case <-proceeded:
	case <-time.After(2 * time.Second):
		t.Fatal("third Put never proceeded after capacity freed")
	}
	sched.Counter().WaitUntilEmpty() // Put returns once queued, not once handled

	mu.Lock()
	defer mu.Unlock()
	if started != 3 {
		t.Fatalf("started = %d, want 3", started)
	}
}

func TestSquelchSkipsHandlerButOffRamps(t *testing.T) {
	sched := NewSequentialScheduler("seq", nil, true, nil)
	sched.Start()
	defer sched.Stop()

	var handled int
	in := BindInputWire(sched, "in", func(v int) {
		handled++
	})

	sched.Squelch(true)
	in.Put(1)
	in.Put(2)
	sched.Counter().WaitUntilEmpty()

	if handled != 0 {
		t.Fatalf("handled = %d, want 0 while squelched", handled)
	}
	if got := sched.Counter().Count(); got != 0 {
		t.Fatalf("counter = %d, want 0 (squelch must still off-ramp)", got)
	}

	sched.Squelch(false)
	in.Put(3)
	sched.Counter().WaitUntilEmpty()
	if handled != 1 {
		t.Fatalf("handled = %d, want 1 after unsquelch", handled)
	}
}

func TestHandlerPanicIsRecoveredAndCounterOffRamps(t *testing.T) {
	var reported string
	sched := NewSequentialScheduler("seq", nil, true, func(name string, r any) {
		reported = name
	})
	sched.Start()
	defer sched.Stop()

	in := BindInputWire(sched, "in", func(v int) {
		panic("boom")
	})
	in.Put(1)
	sched.Counter().WaitUntilEmpty()

	if reported != "seq" {
		t.Fatalf("onUncaughtError reported %q, want %q", reported, "seq")
	}
	if got := sched.Counter().Count(); got != 0 {
		t.Fatalf("counter = %d, want 0 after panicking handler", got)
	}
}

func TestNoOpSchedulerDropsTasks(t *testing.T) {
	sched := NewNoOpScheduler("noop")
	var handled int
	in := BindInputWire(sched, "in", func(v int) { handled++ })
	in.Put(1)
	if handled != 0 {
		t.Fatalf("handled = %d, want 0 (NO_OP must drop)", handled)
	}
	if got := sched.Counter().Count(); got != 0 {
		t.Fatalf("counter = %d, want 0", got)
	}
}

func TestConcurrentSchedulerRunsInParallel(t *testing.T) {
	pool := NewPool(4)
	defer pool.Stop()
	sched := NewConcurrentScheduler("conc", nil, pool, true, nil)

	var wg sync.WaitGroup
	wg.Add(4)
	in := BindInputWire(sched, "in", func(v int) {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
	})

	start := time.Now()
	for i := 0; i < 4; i++ {
		in.Put(i)
	}
	wg.Wait()
	if elapsed := time.Since(start); elapsed > 60*time.Millisecond {
		t.Fatalf("tasks took %v, expected them to run in parallel", elapsed)
	}
}

func TestDirectThreadsafeSchedulerSerializesCallers(t *testing.T) {
	sched := NewDirectThreadsafeScheduler("dts", nil, nil)
	var inHandler int
	var maxConcurrent int
	var mu sync.Mutex
	in := BindInputWire(sched, "in", func(v int) {
		mu.Lock()
		inHandler++
		if inHandler > maxConcurrent {
			maxConcurrent = inHandler
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		inHandler--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			in.Put(v)
		}(i)
	}
	wg.Wait()

	if maxConcurrent != 1 {
		t.Fatalf("maxConcurrent = %d, want 1 (DIRECT_THREADSAFE must serialize)", maxConcurrent)
	}
}
