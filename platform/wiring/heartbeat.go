package wiring

import (
	"sync"
	"time"

	"github.com/hgwiring/platform/platform/metrics"
)

// NoInput is the value emitted by a HeartbeatSource on every tick.
type NoInput struct{}

// HeartbeatSource emits NoInput at a declared frequency (spec §4.3
// "Heartbeat source"). It has no input wire of its own — it is always the
// root of whatever it's soldered to — and is typically OFFER-soldered so a
// missed tick under load is acceptable rather than backpressuring the
// ticker (spec §4.3 "Solder (OFFER)").
type HeartbeatSource struct {
	name   string
	period time.Duration
	out    *OutputWire[NoInput]

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func (h *HeartbeatSource) nodeName() string { return h.name }
func (h *HeartbeatSource) nodeDirect() bool { return true }

// NewHeartbeatSource creates a heartbeat ticking at frequencyHz times per
// second.
func NewHeartbeatSource(name string, frequencyHz float64) *HeartbeatSource {
	if frequencyHz <= 0 {
		frequencyHz = 1
	}
	h := &HeartbeatSource{
		name:      name,
		period:    time.Duration(float64(time.Second) / frequencyHz),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	h.out = NewOutputWire[NoInput](h, name+"-out")
	return h
}

// Output returns the wire every tick is emitted on.
func (h *HeartbeatSource) Output() *OutputWire[NoInput] { return h.out }

// Start begins ticking in a background goroutine.
func (h *HeartbeatSource) Start() {
	h.startOnce.Do(func() {
		h.started = true
		go h.loop()
	})
}

func (h *HeartbeatSource) loop() {
	defer close(h.stoppedCh)
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			metrics.HeartbeatTicks.WithLabelValues(h.name).Inc()
			h.out.Emit(NoInput{})
		}
	}
}

// Stop halts the ticker and waits for the background goroutine to exit.
func (h *HeartbeatSource) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	if h.started {
		<-h.stoppedCh
	}
}
