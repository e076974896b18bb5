package wiring

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hgwiring/platform/platform/metrics"
)

// Counter tracks in-flight work for a scheduler. Implementations must
// never let the count go negative and must serialize the capacity check
// across every scheduler that shares them.
type Counter interface {
	// OnRamp increments the count, parking the caller while the counter is
	// at capacity (backpressuring counters only; plain counters never park).
	OnRamp()
	// InterruptableOnRamp is OnRamp but returns ctx.Err() if the context is
	// cancelled while parked, without incrementing the count.
	InterruptableOnRamp(ctx context.Context) error
	// AttemptOnRamp increments the count only if that would not require
	// parking. It reports whether the increment happened.
	AttemptOnRamp() bool
	// ForceOnRamp increments the count unconditionally, bypassing capacity.
	// Used by INJECT edges.
	ForceOnRamp()
	// OffRamp decrements the count. Must be matched 1:1 with an on-ramp.
	OffRamp()
	// Count returns a snapshot of the current count.
	Count() int64
	// WaitUntilEmpty blocks until the count reaches zero.
	WaitUntilEmpty()
}

// TaskCounter is a plain non-negative atomic counter with no capacity. It
// never parks; OnRamp, AttemptOnRamp, and ForceOnRamp are all equivalent.
type TaskCounter struct {
	count int64
	mu    sync.Mutex
	zero  *sync.Cond
}

// NewTaskCounter returns a new, empty TaskCounter.
func NewTaskCounter() *TaskCounter {
	c := &TaskCounter{}
	c.zero = sync.NewCond(&c.mu)
	return c
}

func (c *TaskCounter) OnRamp() { c.ForceOnRamp() }

func (c *TaskCounter) InterruptableOnRamp(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.ForceOnRamp()
	return nil
}

func (c *TaskCounter) AttemptOnRamp() bool {
	c.ForceOnRamp()
	return true
}

func (c *TaskCounter) ForceOnRamp() {
	atomic.AddInt64(&c.count, 1)
}

func (c *TaskCounter) OffRamp() {
	if atomic.AddInt64(&c.count, -1) < 0 {
		panic("wiring: task counter decremented below zero")
	}
	c.mu.Lock()
	if atomic.LoadInt64(&c.count) == 0 {
		c.zero.Broadcast()
	}
	c.mu.Unlock()
}

func (c *TaskCounter) Count() int64 {
	return atomic.LoadInt64(&c.count)
}

func (c *TaskCounter) WaitUntilEmpty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for atomic.LoadInt64(&c.count) != 0 {
		c.zero.Wait()
	}
}

// BackpressuringTaskCounter wraps a TaskCounter with a capacity: OnRamp
// parks the caller, retrying at parkInterval, while the count is at or
// above capacity. The retry loop is gated by a rate.Limiter so repeated
// parking doesn't spin the CPU, generalizing the teacher's per-key token
// bucket (control_plane/scheduler/limiter.go) into a single admission gate
// shared by every caller of this scheduler.
type BackpressuringTaskCounter struct {
	*TaskCounter
	capacity     int64
	parkInterval time.Duration
	parkLimiter  *rate.Limiter
	name         string // label for platform_backpressure_park_seconds; optional
}

// NewBackpressuringTaskCounter returns a counter that blocks on-ramps once
// count reaches capacity, retrying every parkInterval.
func NewBackpressuringTaskCounter(capacity int64, parkInterval time.Duration) *BackpressuringTaskCounter {
	if capacity < 1 {
		capacity = 1
	}
	if parkInterval <= 0 {
		parkInterval = time.Millisecond
	}
	return &BackpressuringTaskCounter{
		TaskCounter:  NewTaskCounter(),
		capacity:     capacity,
		parkInterval: parkInterval,
		parkLimiter:  rate.NewLimiter(rate.Every(parkInterval), 1),
	}
}

// WithName attaches a label used when reporting
// platform_backpressure_park_seconds; schedulerFor in cmd/platformnode
// calls this with the owning scheduler's name. Returns the receiver.
func (c *BackpressuringTaskCounter) WithName(name string) *BackpressuringTaskCounter {
	c.name = name
	return c
}

func (c *BackpressuringTaskCounter) OnRamp() {
	for {
		if c.AttemptOnRamp() {
			return
		}
		c.park()
	}
}

func (c *BackpressuringTaskCounter) InterruptableOnRamp(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.AttemptOnRamp() {
			return nil
		}
		if err := c.parkCancellable(ctx); err != nil {
			return err
		}
	}
}

func (c *BackpressuringTaskCounter) AttemptOnRamp() bool {
	for {
		cur := atomic.LoadInt64(&c.count)
		if cur >= c.capacity {
			return false
		}
		if atomic.CompareAndSwapInt64(&c.count, cur, cur+1) {
			return true
		}
	}
}

// ForceOnRamp bypasses capacity entirely — used by INJECT solder edges.
func (c *BackpressuringTaskCounter) ForceOnRamp() {
	c.TaskCounter.ForceOnRamp()
}

func (c *BackpressuringTaskCounter) park() {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), c.parkInterval*2)
	defer cancel()
	_ = c.parkLimiter.Wait(ctx)
	c.observePark(start)
}

func (c *BackpressuringTaskCounter) parkCancellable(ctx context.Context) error {
	start := time.Now()
	err := c.parkLimiter.Wait(ctx)
	c.observePark(start)
	return err
}

func (c *BackpressuringTaskCounter) observePark(start time.Time) {
	if c.name == "" {
		return
	}
	metrics.BackpressureParkSeconds.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
}

// SharedCounter lets two or more schedulers present the same Counter so
// they can be jointly flushed (spec §4.4 step 1: event-hasher and
// post-hash collector). It is a thin alias; sharing is just handing the
// same *TaskCounter (or *BackpressuringTaskCounter) to both schedulers.
type SharedCounter = Counter
