// Package components defines the domain collaborator contracts consumed
// by the core wiring framework (spec.md §4.6, §6) and wiring-grade default
// implementations sufficient to exercise the framework end to end. None of
// these defaults do real cryptography, gossip transport, or consensus —
// that is explicitly out of scope (spec.md Non-goals); they exist to give
// every wire in the graph a real sink and source to drive through.
package components

import "github.com/hgwiring/platform/platform/pces"

// Event is a single unvalidated event entering the intake pipeline.
type Event struct {
	ID        string
	CreatorID string
	Payload   []byte
}

// HashedEvent is an Event after the event hasher has run.
type HashedEvent struct {
	Event Event
	Hash  [32]byte
}

// ValidatedEvent is a HashedEvent that passed signature validation and was
// assigned a stream sequence number by the PCES sequencer.
type ValidatedEvent struct {
	Event          HashedEvent
	SequenceNumber int64
}

// EventWindow bounds the ancient/expired event range. Pushed to
// window-aware components over an INJECT edge (spec.md §6).
type EventWindow struct {
	LowerBound int64
	UpperBound int64
}

// StateHash is the hash of consensus state after applying one round.
type StateHash struct {
	Round int64
	Hash  [32]byte
}

// StateSignature is one node's signature over a StateHash.
type StateSignature struct {
	Round     int64
	NodeID    string
	Signature []byte
}

// Round is the type flowing from the consensus engine through the
// durability buffer to the round handler — a plain alias so components
// that only need the shape don't import pces for its own sake.
type Round = pces.ConsensusRound
