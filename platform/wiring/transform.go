package wiring

import "github.com/hgwiring/platform/platform/reservation"

// NewTransformer wires a named 1→1 pure map onto scheduler: every value
// delivered to the input wire is passed through fn and emitted on the
// returned output wire (spec §4.3 "Transformer").
func NewTransformer[T, R any](scheduler *Scheduler, name string, fn func(T) R) (*InputWire[T], *OutputWire[R]) {
	out := NewOutputWire[R](scheduler, name+"-out")
	in := BindInputWire(scheduler, name+"-in", func(v T) {
		out.Emit(fn(v))
	})
	return in, out
}

// NewSplitter wires a 1→N fan-out: split(v) is emitted item by item, in
// slice order, preserving element order (spec §4.3 "Splitter").
func NewSplitter[T, R any](scheduler *Scheduler, name string, split func(T) []R) (*InputWire[T], *OutputWire[R]) {
	out := NewOutputWire[R](scheduler, name+"-out")
	in := BindInputWire(scheduler, name+"-in", func(v T) {
		for _, item := range split(v) {
			out.Emit(item)
		}
	})
	return in, out
}

// NewFilter wires a 1→0·1 boolean gate: values for which predicate returns
// true are forwarded, others are dropped. A predicate over a reservable
// value is responsible for releasing its own reservation when it drops a
// value (spec §4.3 "Filter", §3 "Reservation discipline").
func NewFilter[T any](scheduler *Scheduler, name string, predicate func(T) bool) (*InputWire[T], *OutputWire[T]) {
	out := NewOutputWire[T](scheduler, name+"-out")
	in := BindInputWire(scheduler, name+"-in", func(v T) {
		if predicate(v) {
			out.Emit(v)
		}
	})
	return in, out
}

// Reservable pairs a value with the reservation.Handle guarding it, for
// use with NewAdvancedTransformer.
type Reservable[T any] struct {
	Value  T
	Handle *reservation.Handle
}

// NewAdvancedTransformer wires a reservation-aware 1→1 stage: on arrival it
// takes fanOut-1 additional reservations on the value's handle before
// forwarding, so each of the fanOut downstreams can release exactly once
// without the value being freed early (spec §3, §4.3 "Advanced
// transformer"). fn may transform the value; it must not touch the
// handle's count itself.
func NewAdvancedTransformer[T any](scheduler *Scheduler, name string, fanOut int, fn func(T) T) (*InputWire[Reservable[T]], *OutputWire[Reservable[T]]) {
	out := NewOutputWire[Reservable[T]](scheduler, name+"-out")
	in := BindInputWire(scheduler, name+"-in", func(v Reservable[T]) {
		if fanOut > 1 {
			v.Handle.Reserve(int32(fanOut - 1))
		}
		v.Value = fn(v.Value)
		out.Emit(v)
	})
	return in, out
}
