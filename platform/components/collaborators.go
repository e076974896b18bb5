package components

// Each collaborator contract below is a small, single-purpose interface —
// the shape the teacher uses for its ReconcilerInterface
// (control_plane/scheduler/scheduler.go): one or two methods the
// framework calls through an input wire's handler, never referenced
// directly by another component (spec.md §4.6 "must not reference each
// other directly; only via wires").

// EventHasher computes a HashedEvent for an incoming Event.
type EventHasher interface {
	Hash(Event) HashedEvent
}

// InternalValidator runs structural sanity checks on a freshly hashed
// event — malformed payload, missing creator, and the like — before it
// reaches the deduplicator. Distinct from SignatureValidator, which
// checks the event's cryptographic signature; this stage never touches
// signatures (spec.md §4.4's intake flush order runs it first).
type InternalValidator interface {
	Validate(HashedEvent) bool
}

// Deduplicator drops events it has already seen. Window-aware: pruning
// old entries is driven by SetEventWindow over an INJECT edge.
type Deduplicator interface {
	IsDuplicate(HashedEvent) bool
	SetEventWindow(EventWindow)
	Clear()
}

// SignatureValidator checks an event's signature and assigns it a stream
// sequence number on success.
type SignatureValidator interface {
	Validate(HashedEvent) (ValidatedEvent, bool)
}

// OrphanBuffer holds events whose parents haven't arrived yet and
// releases them once satisfied (or immediately, in the wiring-grade
// default, since no real DAG tracking is in scope).
type OrphanBuffer interface {
	Admit(ValidatedEvent) []ValidatedEvent
	SetEventWindow(EventWindow)
	Clear()
}

// Gossip broadcasts validated events to peers.
type Gossip interface {
	Broadcast(ValidatedEvent)
	Clear()
}

// ConsensusEngine accepts validated events and out-of-band snapshot
// updates, and emits consensus rounds (via its own OutputWire, not this
// interface — this interface is only the accepting side).
type ConsensusEngine interface {
	AddEvent(ValidatedEvent)
	OutOfBandSnapshotUpdate(round int64)
}

// TransactionPrehandler runs pre-consensus transaction handling.
type TransactionPrehandler interface {
	Prehandle(Event)
}

// EventCreationManager is notified of each new consensus round so it can
// decide whether and what to create next.
type EventCreationManager interface {
	NotifyRound(Round)
	SetEventWindow(EventWindow)
	Clear()
}

// StateHasher derives a StateHash from a consensus round.
type StateHasher interface {
	Hash(Round) StateHash
}

// StateSignatureCollector gathers per-node signatures over a StateHash and
// reports when enough have arrived to consider the round state-signed.
type StateSignatureCollector interface {
	Collect(StateSignature) bool
	Clear()
}

// ConsensusRoundHandler is the terminal sink: it receives only rounds
// whose keystone is already durable (spec.md §4.5's invariant).
type ConsensusRoundHandler interface {
	HandleRound(Round)
}

// ISSDetector compares a locally computed StateHash against a peer's and
// reports an incorrect-state-signature mismatch.
type ISSDetector interface {
	Check(self, peer StateHash) bool
}

// EventWindowManager derives the next EventWindow from a consensus round.
// Its output is soldered with INJECT edges to every window-aware sink,
// breaking the cycle those edges would otherwise create.
type EventWindowManager interface {
	Advance(Round) EventWindow
}
