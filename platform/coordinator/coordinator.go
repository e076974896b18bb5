// Package coordinator implements the platform coordinator: the
// reconnect-safe state machine that squelches, flushes, and clears the
// intake/consensus pipeline in the exact order spec.md §4.4 requires.
//
// Squelching alone would lose work already held inside queues. Flushing
// alone would livelock because upstream keeps emitting new work. Clearing
// before flush would race with in-flight mutations. The four phases exist
// because each of those failure modes needs a different fix, and they must
// run in this order.
//
// Grounded on control_plane/scheduler/types.go's AdmissionMode
// (Normal/Drain/Freeze), generalized from a three-state ingress gate into
// the squelch boolean, and on control_plane/resilience/degraded_mode.go's
// state-dependent draining.
package coordinator

import (
	"log"
	"time"

	"github.com/hgwiring/platform/platform/metrics"
	"github.com/hgwiring/platform/platform/wiring"
)

// ClearCommand is delivered to a component's clear input wire in Phase 4.
// Receiving it means: reset internal state synchronously, then return.
type ClearCommand struct{}

// ComponentRef adapts one wired component (a wiring.Scheduler, plus an
// optional clear input wire) to the capability set the coordinator needs:
// flush (wait until its counter is empty), squelch, and clear
// (spec §4.6 "capability set {handle, clear?, setEventWindow?}").
type ComponentRef struct {
	scheduler *wiring.Scheduler
	clearWire *wiring.InputWire[ClearCommand]
}

// NewComponentRef wraps scheduler for coordinator use.
func NewComponentRef(scheduler *wiring.Scheduler) *ComponentRef {
	return &ComponentRef{scheduler: scheduler}
}

// WithClear attaches the component's clear input wire, making it a valid
// Phase 4 target. Returns the receiver for chaining at wiring time.
func (c *ComponentRef) WithClear(clearWire *wiring.InputWire[ClearCommand]) *ComponentRef {
	c.clearWire = clearWire
	return c
}

// Name returns the underlying scheduler's name, for logging.
func (c *ComponentRef) Name() string { return c.scheduler.Name() }

// Flush blocks until the component's task counter is empty — draining
// whatever was already in flight, including tasks admitted before a
// squelch took effect.
func (c *ComponentRef) Flush() { c.scheduler.Counter().WaitUntilEmpty() }

// Squelch enables or disables squelch mode on the component's scheduler.
// Squelch affects only tasks not yet dispatched; one already running when
// squelch is enabled completes normally (spec §9, resolved).
func (c *ComponentRef) Squelch(on bool) { c.scheduler.Squelch(on) }

// Clear delivers a ClearCommand to the component's clear wire. No-op if
// the component was never given one.
func (c *ComponentRef) Clear() {
	if c.clearWire != nil {
		c.clearWire.Put(ClearCommand{})
	}
}

// IntakeRefs names the intake-pipeline components, in the exact flush
// order spec §4.4 requires.
type IntakeRefs struct {
	InternalValidator     *ComponentRef
	Deduplicator          *ComponentRef
	SignatureValidator    *ComponentRef
	OrphanBuffer          *ComponentRef
	Gossip                *ComponentRef
	ConsensusEngine       *ComponentRef
	TransactionPrehandler *ComponentRef
	EventCreationManager  *ComponentRef
}

func (r IntakeRefs) ordered() []*ComponentRef {
	return []*ComponentRef{
		r.InternalValidator,
		r.Deduplicator,
		r.SignatureValidator,
		r.OrphanBuffer,
		r.Gossip,
		r.ConsensusEngine,
		r.TransactionPrehandler,
		r.EventCreationManager,
	}
}

// Config assembles every component reference the Coordinator needs.
type Config struct {
	// SharedHashingCounter is the counter shared by the event hasher and
	// the post-hash collector (spec §4.4 step 1 "joint flush").
	SharedHashingCounter wiring.Counter

	Intake IntakeRefs

	// Squelched lists the components that participate in cycles and must
	// be squelched during Phase 1/unsquelched during Phase 3: the
	// consensus engine, event-creation manager, and consensus round
	// handler (spec §4.4 Phase 1).
	Squelched []*ComponentRef

	// Phase2Extra lists the components flushed after the intake pipeline
	// in Phase 2, beyond the intake set: the state hasher,
	// state-signature collector, round-durability buffer, and consensus
	// round handler.
	Phase2Extra []*ComponentRef

	// ClearTargets lists the components that receive a ClearCommand in
	// Phase 4: deduplicator, orphan buffer, gossip, state-signature
	// collector, event-creation manager, and round-durability buffer.
	ClearTargets []*ComponentRef
}

// Coordinator drives the whole graph through its reconnect lifecycle.
type Coordinator struct {
	cfg Config
}

// New constructs a Coordinator from a fully wired Config.
func New(cfg Config) *Coordinator {
	return &Coordinator{cfg: cfg}
}

// FlushIntake runs the intake-flush algorithm (spec §4.4): wait for the
// shared hashing counter, then flush the remaining intake components in
// the declared order. After it returns, no work remains in the intake
// pipeline provided no new events are injected and the orphan buffer has
// released everything. Idempotent: calling it twice with no interleaved
// submissions leaves the system in the same (empty) state.
func (co *Coordinator) FlushIntake() {
	if co.cfg.SharedHashingCounter != nil {
		co.cfg.SharedHashingCounter.WaitUntilEmpty()
	}
	for _, c := range co.cfg.Intake.ordered() {
		if c != nil {
			c.Flush()
		}
	}
}

// Clear runs the four-phase clear algorithm (spec §4.4). Idempotent under
// the same condition as FlushIntake.
func (co *Coordinator) Clear() {
	timed := func(phase string, fn func()) {
		start := time.Now()
		fn()
		metrics.CoordinatorPhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	}

	log.Printf("[COORDINATOR] clear: phase 1 (squelch)")
	timed("squelch", func() {
		for _, c := range co.cfg.Squelched {
			if c == nil {
				continue
			}
			c.Squelch(true)
			c.Flush() // drain whatever was already in flight when squelch took effect
		}
	})

	log.Printf("[COORDINATOR] clear: phase 2 (flush)")
	timed("flush", func() {
		co.FlushIntake()
		for _, c := range co.cfg.Phase2Extra {
			if c != nil {
				c.Flush()
			}
		}
	})

	log.Printf("[COORDINATOR] clear: phase 3 (stop squelching)")
	timed("unsquelch", func() {
		for _, c := range co.cfg.Squelched {
			if c != nil {
				c.Squelch(false)
			}
		}
	})

	log.Printf("[COORDINATOR] clear: phase 4 (clear)")
	timed("clear", func() {
		for _, c := range co.cfg.ClearTargets {
			if c != nil {
				c.Clear()
			}
		}
	})
	log.Printf("[COORDINATOR] clear: complete")
}
