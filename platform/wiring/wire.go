package wiring

import (
	"context"
	"log"
)

// SolderType selects how an edge behaves when its downstream counter is at
// capacity (spec §4.3).
type SolderType int

const (
	// SolderDefault blocks the upstream until the downstream counter has
	// room.
	SolderDefault SolderType = iota
	// SolderInject bypasses the downstream counter's capacity entirely.
	// Required only to break structural cycles.
	SolderInject
	// SolderOffer is non-blocking: the value is dropped if the downstream
	// counter is at capacity.
	SolderOffer
)

func (t SolderType) String() string {
	switch t {
	case SolderDefault:
		return "default"
	case SolderInject:
		return "INJECT"
	case SolderOffer:
		return "OFFER"
	default:
		return "unknown"
	}
}

// graphNode is implemented by anything that can be the source of a
// soldered edge: a Scheduler, or a HeartbeatSource. It's what the Model's
// build-time cycle check walks.
type graphNode interface {
	nodeName() string
	// nodeDirect reports whether the node runs inline without holding a
	// queue (DIRECT/DIRECT_THREADSAFE schedulers, and heartbeat sources,
	// which have no inbound edge at all). Model.Build accepts a cycle as
	// long as one of its edges is not a default edge into a SEQUENTIAL or
	// CONCURRENT scheduler (see graphEdge.isBlocking).
	nodeDirect() bool
}

func (s *Scheduler) nodeName() string { return s.name }
func (s *Scheduler) nodeDirect() bool {
	return s.typ == Direct || s.typ == DirectThreadsafe
}

// InputWire is a typed entry point into a scheduler, bound to exactly one
// handler (spec §3). Build one with BindInputWire.
type InputWire[T any] struct {
	name      string
	scheduler *Scheduler
	handler   func(T)
}

// BindInputWire creates an input wire on scheduler that invokes handler for
// every delivered value.
func BindInputWire[T any](scheduler *Scheduler, name string, handler func(T)) *InputWire[T] {
	return &InputWire[T]{name: name, scheduler: scheduler, handler: handler}
}

func (w *InputWire[T]) Name() string          { return w.name }
func (w *InputWire[T]) Scheduler() *Scheduler { return w.scheduler }

func (w *InputWire[T]) deliver(v T, onRamp func() bool) bool {
	if !onRamp() {
		return false
	}
	w.scheduler.dispatch(func(squelched bool) {
		defer w.scheduler.counter.OffRamp()
		if squelched {
			return
		}
		// Recovered here, before the deferred off-ramp runs, so a handler
		// panic is already reported once the counter drains.
		defer func() {
			if r := recover(); r != nil {
				if w.scheduler.onUncaughtError != nil {
					w.scheduler.onUncaughtError(w.scheduler.name, r)
				} else {
					log.Printf("[WIRING] scheduler %q: uncaught handler error: %v", w.scheduler.name, r)
				}
			}
		}()
		w.handler(v)
	})
	return true
}

// Put delivers v using the default (blocking) on-ramp policy: the caller
// parks until the scheduler's counter has room.
func (w *InputWire[T]) Put(v T) {
	w.deliver(v, func() bool {
		w.scheduler.counter.OnRamp()
		return true
	})
}

// InterruptablePut is Put, but surfaces ctx cancellation instead of
// parking forever.
func (w *InputWire[T]) InterruptablePut(ctx context.Context, v T) error {
	var onRampErr error
	w.deliver(v, func() bool {
		onRampErr = w.scheduler.counter.InterruptableOnRamp(ctx)
		return onRampErr == nil
	})
	return onRampErr
}

// ForcePut delivers v bypassing capacity entirely — the mechanics of an
// INJECT solder edge.
func (w *InputWire[T]) ForcePut(v T) {
	w.deliver(v, func() bool {
		w.scheduler.counter.ForceOnRamp()
		return true
	})
}

// OfferPut delivers v only if that would not require parking, dropping it
// otherwise. Reports whether it was delivered — the mechanics of an OFFER
// solder edge.
func (w *InputWire[T]) OfferPut(v T) bool {
	return w.deliver(v, w.scheduler.counter.AttemptOnRamp)
}

// edge is one soldered connection out of an OutputWire.
type edge[T any] struct {
	kind   SolderType
	target func(T)
}

// OutputWire is a typed exit point produced by a scheduler or transformer
// (spec §3). Every value emitted is delivered to every soldered downstream
// before the source task is retired.
type OutputWire[T any] struct {
	name   string
	source graphNode
	edges  []edge[T]
}

// NewOutputWire creates an output wire attributed to source (a Scheduler
// or HeartbeatSource) for the model's wire-diagram and cycle-check
// purposes.
func NewOutputWire[T any](source graphNode, name string) *OutputWire[T] {
	return &OutputWire[T]{name: name, source: source}
}

func (o *OutputWire[T]) Name() string { return o.name }

// Emit delivers v to every soldered downstream, in solder order. For
// non-ordered edges, spec §3 only requires "before the source task is
// retired" — a plain sequential fan-out over the edge list satisfies that
// without adding any extra synchronization.
func (o *OutputWire[T]) Emit(v T) {
	for _, e := range o.edges {
		e.target(v)
	}
}

// EdgeCount reports how many downstreams are soldered to this wire.
func (o *OutputWire[T]) EdgeCount() int { return len(o.edges) }

// Solder connects out to in with the given SolderType and records the edge
// in m's graph for build-time cycle validation. Prefer the typed
// SolderDefaultEdge/SolderInjectEdge/SolderOfferEdge helpers below for call-site
// clarity.
func Solder[T any](m *Model, out *OutputWire[T], in *InputWire[T], kind SolderType) {
	var target func(T)
	switch kind {
	case SolderInject:
		target = in.ForcePut
	case SolderOffer:
		target = func(v T) { in.OfferPut(v) }
	default:
		target = in.Put
	}
	out.edges = append(out.edges, edge[T]{kind: kind, target: target})
	m.recordEdge(out.source, in.scheduler, kind)
}

// SolderDefaultEdge solders a blocking (default) edge.
func SolderDefaultEdge[T any](m *Model, out *OutputWire[T], in *InputWire[T]) {
	Solder(m, out, in, SolderDefault)
}

// SolderInjectEdge solders an INJECT edge, required to break structural
// cycles.
func SolderInjectEdge[T any](m *Model, out *OutputWire[T], in *InputWire[T]) {
	Solder(m, out, in, SolderInject)
}

// SolderOfferEdge solders a non-blocking OFFER edge.
func SolderOfferEdge[T any](m *Model, out *OutputWire[T], in *InputWire[T]) {
	Solder(m, out, in, SolderOffer)
}
