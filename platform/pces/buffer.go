package pces

import (
	"log"
	"time"

	"github.com/hgwiring/platform/platform/metrics"
	"github.com/hgwiring/platform/platform/werr"
	"github.com/hgwiring/platform/platform/wiring"
)

// ConsensusRound is a single consensus round carrying the keystone event's
// assigned sequence number, exactly as spec.md §4.5 describes: "Each
// consensus round carries a designated keystone event whose stream
// sequence number was assigned by the PCES sequencer."
type ConsensusRound struct {
	RoundNumber            int64
	KeystoneSequenceNumber int64
	Payload                any
}

type pendingRound struct {
	round      ConsensusRound
	bufferedAt time.Time
}

// DurabilityBuffer holds consensus rounds until their keystone's sequence
// number is durable, then releases them to the round handler. It runs on
// its own Sequential scheduler so RoundInput, DurableMarkInput, and the
// stale-round heartbeat check all serialize through one queue — no
// separate lock is needed.
//
// Grounded on spec.md §4.5; the scheduler/wire plumbing reuses
// platform/wiring exactly as every other component does.
type DurabilityBuffer struct {
	scheduler *wiring.Scheduler

	pending       map[int64][]pendingRound
	latestDurable int64

	roundOut      *wiring.OutputWire[ConsensusRound]
	roundIn       *wiring.InputWire[ConsensusRound]
	durableMarkIn *wiring.InputWire[int64]
}

// NewDurabilityBuffer builds a buffer bound to scheduler, named name.
func NewDurabilityBuffer(scheduler *wiring.Scheduler, name string) *DurabilityBuffer {
	b := &DurabilityBuffer{
		scheduler: scheduler,
		pending:   make(map[int64][]pendingRound),
	}
	b.roundOut = wiring.NewOutputWire[ConsensusRound](scheduler, name+"-round-out")
	b.roundIn = wiring.BindInputWire(scheduler, name+"-round-in", b.handleRound)
	b.durableMarkIn = wiring.BindInputWire(scheduler, name+"-durable-mark-in", b.handleDurableMark)
	return b
}

// RoundInput accepts consensus rounds from the consensus engine (by way of
// the ordered solder that guarantees the flush request arrived first).
func (b *DurabilityBuffer) RoundInput() *wiring.InputWire[ConsensusRound] { return b.roundIn }

// DurableMarkInput accepts the writer's latest-durable-sequence-number
// notifications. Must be soldered with SolderInjectEdge — an INJECT edge —
// to break the writer-to-buffer cycle (spec.md §4.5).
func (b *DurabilityBuffer) DurableMarkInput() *wiring.InputWire[int64] { return b.durableMarkIn }

// Output emits rounds once their keystone is durable, for the consensus
// round handler's input wire.
func (b *DurabilityBuffer) Output() *wiring.OutputWire[ConsensusRound] { return b.roundOut }

// Clear discards every round still waiting on a keystone to become
// durable, part of the coordinator's Phase 4 (spec.md §4.4). latestDurable
// is left untouched: it mirrors a fact the writer already committed, not
// transient state the buffer is responsible for resetting.
func (b *DurabilityBuffer) Clear() {
	b.pending = make(map[int64][]pendingRound)
	metrics.PCESPendingRounds.Set(0)
}

// StaleRoundCheckInput returns an input wire a heartbeat can be soldered
// to; each tick logs any round that has waited longer than staleAfter for
// its keystone to become durable. Runs on the same scheduler as
// RoundInput/DurableMarkInput, so it observes a consistent pending set.
func (b *DurabilityBuffer) StaleRoundCheckInput(staleAfter time.Duration) *wiring.InputWire[wiring.NoInput] {
	return wiring.BindInputWire(b.scheduler, b.scheduler.Name()+"-stale-check", func(wiring.NoInput) {
		b.checkForStaleRounds(staleAfter)
	})
}

func (b *DurabilityBuffer) handleRound(r ConsensusRound) {
	if r.KeystoneSequenceNumber <= b.latestDurable {
		b.emit(r)
		return
	}
	b.pending[r.KeystoneSequenceNumber] = append(b.pending[r.KeystoneSequenceNumber], pendingRound{
		round:      r,
		bufferedAt: time.Now(),
	})
	metrics.PCESPendingRounds.Set(float64(b.pendingCount()))
}

func (b *DurabilityBuffer) handleDurableMark(seq int64) {
	if seq < b.latestDurable {
		return // writer's mark must be non-decreasing; ignore a stale one
	}
	b.latestDurable = seq
	metrics.PCESLatestDurableSequence.Set(float64(seq))
	for keystone, rounds := range b.pending {
		if keystone > seq {
			continue
		}
		for _, pr := range rounds {
			b.emit(pr.round)
		}
		delete(b.pending, keystone)
	}
	metrics.PCESPendingRounds.Set(float64(b.pendingCount()))
}

func (b *DurabilityBuffer) pendingCount() int {
	n := 0
	for _, rounds := range b.pending {
		n += len(rounds)
	}
	return n
}

// emit is the single place a round reaches roundOut, so the durability
// invariant — the round handler never sees a round before its keystone is
// durable — is checked exactly once (spec.md §7 "(5) Durability
// violation ... must panic").
func (b *DurabilityBuffer) emit(r ConsensusRound) {
	if r.KeystoneSequenceNumber > b.latestDurable {
		panic(&werr.DurabilityViolation{
			KeystoneSequenceNumber: r.KeystoneSequenceNumber,
			LatestDurableSequence:  b.latestDurable,
		})
	}
	b.roundOut.Emit(r)
}

func (b *DurabilityBuffer) checkForStaleRounds(staleAfter time.Duration) {
	now := time.Now()
	for keystone, rounds := range b.pending {
		for _, pr := range rounds {
			if waited := now.Sub(pr.bufferedAt); waited > staleAfter {
				log.Printf("[PCES] round %d pending durability of keystone sequence %d for %s (latest durable = %d)",
					pr.round.RoundNumber, keystone, waited, b.latestDurable)
			}
		}
	}
}
