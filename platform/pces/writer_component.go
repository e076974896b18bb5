package pces

import (
	"context"
	"log"

	"github.com/hgwiring/platform/platform/wiring"
)

// WriterComponent wires a WriterClient into the dataflow graph: its
// FlushRequestInput accepts keystone sequence numbers extracted from a
// consensus round, and its DurableMarkOutput emits the writer's latest
// durable sequence number after each flush request — the value that must
// reach the durability buffer over an INJECT edge (spec.md §4.5).
type WriterComponent struct {
	client    WriterClient
	scheduler *wiring.Scheduler
	breaker   *CircuitBreaker

	flushRequestIn *wiring.InputWire[int64]
	durableMarkOut *wiring.OutputWire[int64]
}

// NewWriterComponent binds client to scheduler under name. A
// CircuitBreaker guards every flush request: after five consecutive
// failures it stops calling client until a 30s cooldown passes, matching
// spec.md §6's durability-writer contract without retrying into a
// store that is already down.
func NewWriterComponent(scheduler *wiring.Scheduler, name string, client WriterClient) *WriterComponent {
	w := &WriterComponent{client: client, scheduler: scheduler, breaker: NewCircuitBreaker(5)}
	w.durableMarkOut = wiring.NewOutputWire[int64](scheduler, name+"-durable-out")
	w.flushRequestIn = wiring.BindInputWire(scheduler, name+"-flush-in", w.handleFlushRequest)
	return w
}

// CircuitState reports the writer's circuit breaker state, for metrics.
func (w *WriterComponent) CircuitState() CircuitState { return w.breaker.State() }

// FlushRequestInput accepts keystone sequence numbers to flush. Soldered
// as the first sink of the consensus round's ordered solder.
func (w *WriterComponent) FlushRequestInput() *wiring.InputWire[int64] { return w.flushRequestIn }

// DurableMarkOutput emits the writer's latest durable sequence number.
// Solder this to the durability buffer with SolderInjectEdge.
func (w *WriterComponent) DurableMarkOutput() *wiring.OutputWire[int64] { return w.durableMarkOut }

func (w *WriterComponent) handleFlushRequest(keystoneSequenceNumber int64) {
	if !w.breaker.Allow() {
		log.Printf("[PCES] writer %q: circuit open, dropping flush request for keystone sequence %d",
			w.scheduler.Name(), keystoneSequenceNumber)
		return
	}

	ctx := context.Background()
	if err := w.client.SubmitFlushRequest(ctx, keystoneSequenceNumber); err != nil {
		w.breaker.RecordFailure()
		log.Printf("[PCES] writer %q: flush request for keystone sequence %d failed: %v",
			w.scheduler.Name(), keystoneSequenceNumber, err)
		return
	}
	latest, err := w.client.LatestDurableSequenceNumber(ctx)
	if err != nil {
		w.breaker.RecordFailure()
		log.Printf("[PCES] writer %q: failed to read latest durable sequence: %v", w.scheduler.Name(), err)
		return
	}
	w.breaker.RecordSuccess()
	w.durableMarkOut.Emit(latest)
}

// KeystoneExtractor returns a transformer that pulls the keystone sequence
// number out of a consensus round, the first of the ordered-solder pair
// spec.md §4.5 names: "(1) a transformer that extracts the keystone
// sequence number and submits a flush request to the PCES writer".
func KeystoneExtractor(scheduler *wiring.Scheduler, name string) (*wiring.InputWire[ConsensusRound], *wiring.OutputWire[int64]) {
	return wiring.NewTransformer(scheduler, name, func(r ConsensusRound) int64 {
		return r.KeystoneSequenceNumber
	})
}
