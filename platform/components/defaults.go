package components

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/hgwiring/platform/platform/wiring"
)

// DefaultEventHasher hashes an event's payload with SHA-256. Stateless,
// safe to run on a CONCURRENT scheduler.
type DefaultEventHasher struct{}

func NewDefaultEventHasher() *DefaultEventHasher { return &DefaultEventHasher{} }

func (h *DefaultEventHasher) Hash(e Event) HashedEvent {
	return HashedEvent{Event: e, Hash: sha256.Sum256(e.Payload)}
}

// DefaultInternalValidator rejects events with an empty payload or missing
// creator ID; everything else passes. No cryptography is involved — that's
// SignatureValidator's job (spec.md Non-goals).
type DefaultInternalValidator struct{}

func (v *DefaultInternalValidator) Validate(h HashedEvent) bool {
	return len(h.Event.Payload) > 0 && h.Event.CreatorID != ""
}

// DefaultDeduplicator tracks seen hashes in memory. SetEventWindow is
// wired for completeness but this default never prunes by window — a
// real deployment would evict hashes whose originating sequence number
// fell below the window's lower bound.
type DefaultDeduplicator struct {
	mu     sync.Mutex
	seen   map[[32]byte]struct{}
	window EventWindow
}

func NewDefaultDeduplicator() *DefaultDeduplicator {
	return &DefaultDeduplicator{seen: make(map[[32]byte]struct{})}
}

func (d *DefaultDeduplicator) IsDuplicate(h HashedEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[h.Hash]; ok {
		return true
	}
	d.seen[h.Hash] = struct{}{}
	return false
}

func (d *DefaultDeduplicator) SetEventWindow(w EventWindow) {
	d.mu.Lock()
	d.window = w
	d.mu.Unlock()
}

func (d *DefaultDeduplicator) Clear() {
	d.mu.Lock()
	d.seen = make(map[[32]byte]struct{})
	d.mu.Unlock()
}

func (d *DefaultDeduplicator) Descriptor(name string) WiringDescriptor {
	return WiringDescriptor{Name: name, Capabilities: Capabilities{Clear: d.Clear, SetEventWindow: d.SetEventWindow}}
}

// Sequencer assigns the durable stream sequence number a validated event
// keeps for the rest of its life — spec.md §4.5's keystone sequence
// numbers are drawn from this, not reassigned downstream. Satisfied by
// *pces.SequencerLedger; left as an interface here so components never
// imports the pgx driver directly.
type Sequencer interface {
	NextSequenceNumber(ctx context.Context, eventID string) (int64, error)
}

// DefaultSignatureValidator accepts every event (no real crypto — spec.md
// Non-goals). If seq is nil it assigns sequence numbers from an in-memory
// counter; otherwise it defers to seq, falling back to the in-memory
// counter if a lookup fails so a transient ledger outage doesn't stall
// the intake pipeline.
type DefaultSignatureValidator struct {
	seq    int64
	ledger Sequencer
}

// NewDefaultSignatureValidator returns a validator backed by ledger. Pass
// nil to use the in-memory counter only.
func NewDefaultSignatureValidator(ledger Sequencer) *DefaultSignatureValidator {
	return &DefaultSignatureValidator{ledger: ledger}
}

func (v *DefaultSignatureValidator) Validate(h HashedEvent) (ValidatedEvent, bool) {
	if v.ledger != nil {
		if n, err := v.ledger.NextSequenceNumber(context.Background(), h.Event.ID); err == nil {
			return ValidatedEvent{Event: h, SequenceNumber: n}, true
		} else {
			log.Printf("[COMPONENTS] sequencer ledger lookup for event %q failed, falling back to in-memory counter: %v", h.Event.ID, err)
		}
	}
	n := atomic.AddInt64(&v.seq, 1)
	return ValidatedEvent{Event: h, SequenceNumber: n}, true
}

// DefaultOrphanBuffer passes every event straight through: there's no real
// parent/child DAG to track without a concrete event model (out of
// scope). It still exercises the clear/window wiring every real orphan
// buffer implementation would need.
type DefaultOrphanBuffer struct {
	mu     sync.Mutex
	window EventWindow
}

func (b *DefaultOrphanBuffer) Admit(v ValidatedEvent) []ValidatedEvent { return []ValidatedEvent{v} }

func (b *DefaultOrphanBuffer) SetEventWindow(w EventWindow) {
	b.mu.Lock()
	b.window = w
	b.mu.Unlock()
}

func (b *DefaultOrphanBuffer) Clear() {}

func (b *DefaultOrphanBuffer) Descriptor(name string) WiringDescriptor {
	return WiringDescriptor{Name: name, Capabilities: Capabilities{Clear: b.Clear, SetEventWindow: b.SetEventWindow}}
}

// DefaultGossip records every broadcast event instead of sending it over a
// real transport (out of scope).
type DefaultGossip struct {
	mu        sync.Mutex
	broadcast []ValidatedEvent
}

func (g *DefaultGossip) Broadcast(v ValidatedEvent) {
	g.mu.Lock()
	g.broadcast = append(g.broadcast, v)
	g.mu.Unlock()
}

func (g *DefaultGossip) Clear() {
	g.mu.Lock()
	g.broadcast = nil
	g.mu.Unlock()
}

func (g *DefaultGossip) Sent() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.broadcast)
}

func (g *DefaultGossip) Descriptor(name string) WiringDescriptor {
	return WiringDescriptor{Name: name, Capabilities: Capabilities{Clear: g.Clear}}
}

// DefaultConsensusEngine batches validated events into rounds of
// batchSize and emits each round on out, with the batch's last event as
// the round's keystone — a wiring-grade stand-in for real consensus (out
// of scope).
type DefaultConsensusEngine struct {
	mu        sync.Mutex
	out       *wiring.OutputWire[Round]
	batchSize int
	nextRound int64
	pending   []ValidatedEvent
}

func NewDefaultConsensusEngine(out *wiring.OutputWire[Round], batchSize int) *DefaultConsensusEngine {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &DefaultConsensusEngine{out: out, batchSize: batchSize}
}

func (c *DefaultConsensusEngine) AddEvent(v ValidatedEvent) {
	c.mu.Lock()
	c.pending = append(c.pending, v)
	var batch []ValidatedEvent
	var round int64
	if len(c.pending) >= c.batchSize {
		batch = c.pending
		c.pending = nil
		c.nextRound++
		round = c.nextRound
	}
	c.mu.Unlock()

	if batch != nil {
		keystone := batch[len(batch)-1].SequenceNumber
		c.out.Emit(Round{RoundNumber: round, KeystoneSequenceNumber: keystone, Payload: batch})
	}
}

func (c *DefaultConsensusEngine) OutOfBandSnapshotUpdate(round int64) {
	c.mu.Lock()
	if round > c.nextRound {
		c.nextRound = round
	}
	c.mu.Unlock()
}

// DefaultTransactionPrehandler counts prehandled transactions; no real
// transaction semantics are in scope.
type DefaultTransactionPrehandler struct {
	mu      sync.Mutex
	handled int
}

func (p *DefaultTransactionPrehandler) Prehandle(Event) {
	p.mu.Lock()
	p.handled++
	p.mu.Unlock()
}

func (p *DefaultTransactionPrehandler) Handled() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handled
}

// DefaultEventCreationManager tracks the last round it observed and the
// current event window; real event-creation policy is out of scope.
type DefaultEventCreationManager struct {
	mu        sync.Mutex
	window    EventWindow
	lastRound int64
}

func (m *DefaultEventCreationManager) NotifyRound(r Round) {
	m.mu.Lock()
	m.lastRound = r.RoundNumber
	m.mu.Unlock()
}

func (m *DefaultEventCreationManager) SetEventWindow(w EventWindow) {
	m.mu.Lock()
	m.window = w
	m.mu.Unlock()
}

func (m *DefaultEventCreationManager) Clear() {
	m.mu.Lock()
	m.lastRound = 0
	m.mu.Unlock()
}

func (m *DefaultEventCreationManager) LastRound() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRound
}

func (m *DefaultEventCreationManager) Descriptor(name string) WiringDescriptor {
	return WiringDescriptor{Name: name, Capabilities: Capabilities{Clear: m.Clear, SetEventWindow: m.SetEventWindow}}
}

// DefaultStateHasher derives a StateHash from a round's number and
// keystone sequence number — not a real Merkle state hash (out of scope).
type DefaultStateHasher struct{}

func (h *DefaultStateHasher) Hash(r Round) StateHash {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%d", r.RoundNumber, r.KeystoneSequenceNumber)))
	return StateHash{Round: r.RoundNumber, Hash: sum}
}

// DefaultStateSignatureCollector reports a round state-signed once quorum
// distinct node signatures have been collected for it.
type DefaultStateSignatureCollector struct {
	mu         sync.Mutex
	quorum     int
	signatures map[int64]map[string]struct{}
}

func NewDefaultStateSignatureCollector(quorum int) *DefaultStateSignatureCollector {
	if quorum <= 0 {
		quorum = 1
	}
	return &DefaultStateSignatureCollector{quorum: quorum, signatures: make(map[int64]map[string]struct{})}
}

func (c *DefaultStateSignatureCollector) Collect(s StateSignature) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.signatures[s.Round]
	if !ok {
		set = make(map[string]struct{})
		c.signatures[s.Round] = set
	}
	set[s.NodeID] = struct{}{}
	return len(set) >= c.quorum
}

func (c *DefaultStateSignatureCollector) Clear() {
	c.mu.Lock()
	c.signatures = make(map[int64]map[string]struct{})
	c.mu.Unlock()
}

func (c *DefaultStateSignatureCollector) Descriptor(name string) WiringDescriptor {
	return WiringDescriptor{Name: name, Capabilities: Capabilities{Clear: c.Clear}}
}

// DefaultConsensusRoundHandler records every round it receives, in order.
// Spec.md's durability invariant guarantees it never sees one before its
// keystone is durable.
type DefaultConsensusRoundHandler struct {
	mu      sync.Mutex
	handled []Round
}

func (h *DefaultConsensusRoundHandler) HandleRound(r Round) {
	h.mu.Lock()
	h.handled = append(h.handled, r)
	h.mu.Unlock()
}

func (h *DefaultConsensusRoundHandler) Handled() []Round {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Round, len(h.handled))
	copy(out, h.handled)
	return out
}

// DefaultISSDetector flags a mismatch when two StateHashes for the same
// round disagree.
type DefaultISSDetector struct{}

func (*DefaultISSDetector) Check(self, peer StateHash) bool {
	return self.Round == peer.Round && self.Hash != peer.Hash
}

// DefaultEventWindowManager derives the next window from a round's
// keystone sequence number, retaining the most recent retain sequence
// numbers.
type DefaultEventWindowManager struct {
	retain int64
}

func NewDefaultEventWindowManager(retain int64) *DefaultEventWindowManager {
	if retain <= 0 {
		retain = 26
	}
	return &DefaultEventWindowManager{retain: retain}
}

func (m *DefaultEventWindowManager) Advance(r Round) EventWindow {
	lower := r.KeystoneSequenceNumber - m.retain
	if lower < 0 {
		lower = 0
	}
	return EventWindow{LowerBound: lower, UpperBound: r.KeystoneSequenceNumber}
}

var (
	_ EventHasher             = (*DefaultEventHasher)(nil)
	_ InternalValidator       = (*DefaultInternalValidator)(nil)
	_ Deduplicator            = (*DefaultDeduplicator)(nil)
	_ SignatureValidator      = (*DefaultSignatureValidator)(nil)
	_ OrphanBuffer            = (*DefaultOrphanBuffer)(nil)
	_ Gossip                  = (*DefaultGossip)(nil)
	_ ConsensusEngine         = (*DefaultConsensusEngine)(nil)
	_ TransactionPrehandler   = (*DefaultTransactionPrehandler)(nil)
	_ EventCreationManager    = (*DefaultEventCreationManager)(nil)
	_ StateHasher             = (*DefaultStateHasher)(nil)
	_ StateSignatureCollector = (*DefaultStateSignatureCollector)(nil)
	_ ConsensusRoundHandler   = (*DefaultConsensusRoundHandler)(nil)
	_ ISSDetector             = (*DefaultISSDetector)(nil)
	_ EventWindowManager      = (*DefaultEventWindowManager)(nil)
)
