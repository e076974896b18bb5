// Package metrics registers the framework's Prometheus metric families.
// Grounded on control_plane/observability/metrics.go's package-level
// promauto var block, renamed from the "flux_" prefix to "platform_".
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SchedulerQueueDepth tracks tasks queued but not yet started, per
	// scheduler (SEQUENTIAL only — other variants report zero).
	SchedulerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "platform_scheduler_queue_depth",
		Help: "Tasks queued but not yet started, by scheduler name",
	}, []string{"scheduler"})

	// SchedulerTaskCount tracks each scheduler's unhandled task count —
	// the same value its Counter.Count() reports.
	SchedulerTaskCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "platform_scheduler_task_count",
		Help: "Current unhandled task count, by scheduler name",
	}, []string{"scheduler"})

	// SchedulerSquelched reports whether a scheduler is currently
	// squelched (1) or not (0).
	SchedulerSquelched = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "platform_scheduler_squelched",
		Help: "1 if the scheduler is currently squelched, 0 otherwise",
	}, []string{"scheduler"})

	// SchedulerUncaughtErrors counts handler panics recovered per
	// scheduler.
	SchedulerUncaughtErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_scheduler_uncaught_errors_total",
		Help: "Handler panics recovered, by scheduler name",
	}, []string{"scheduler"})

	// BackpressureParkSeconds tracks time spent parked waiting for
	// capacity in a BackpressuringTaskCounter.
	BackpressureParkSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "platform_backpressure_park_seconds",
		Help:    "Time spent parked waiting for on-ramp capacity",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"scheduler"})

	// ReservationLeaks counts non-zero refcounts observed at Handle
	// disposal.
	ReservationLeaks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_reservation_leaks_total",
		Help: "Reservable handles disposed with a non-zero refcount",
	}, []string{"tag"})

	// CoordinatorPhaseDuration tracks how long each Clear() phase takes.
	CoordinatorPhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "platform_coordinator_phase_duration_seconds",
		Help:    "Duration of each coordinator Clear() phase",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	// PCESLatestDurableSequence mirrors the PCES writer's latest durable
	// sequence number.
	PCESLatestDurableSequence = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "platform_pces_latest_durable_sequence",
		Help: "Latest durable sequence number reported by the PCES writer",
	})

	// PCESPendingRounds tracks rounds buffered in the durability buffer
	// awaiting a durable keystone.
	PCESPendingRounds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "platform_pces_pending_rounds",
		Help: "Consensus rounds buffered awaiting keystone durability",
	})

	// HeartbeatTicks counts emitted heartbeat ticks, by source name.
	HeartbeatTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_heartbeat_ticks_total",
		Help: "Heartbeat ticks emitted, by source name",
	}, []string{"heartbeat"})

	// PCESWriterCircuitState reports the writer's circuit breaker state as
	// 0 (closed), 1 (half-open), or 2 (open).
	PCESWriterCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "platform_pces_writer_circuit_state",
		Help: "PCES writer circuit breaker state: 0=closed, 1=half_open, 2=open",
	})
)

// families lists every metric family registered above, for Describe.
var families = []struct {
	name string
	help string
}{
	{"platform_scheduler_queue_depth", "Tasks queued but not yet started, by scheduler name"},
	{"platform_scheduler_task_count", "Current unhandled task count, by scheduler name"},
	{"platform_scheduler_squelched", "1 if the scheduler is currently squelched, 0 otherwise"},
	{"platform_scheduler_uncaught_errors_total", "Handler panics recovered, by scheduler name"},
	{"platform_backpressure_park_seconds", "Time spent parked waiting for on-ramp capacity"},
	{"platform_reservation_leaks_total", "Reservable handles disposed with a non-zero refcount"},
	{"platform_coordinator_phase_duration_seconds", "Duration of each coordinator Clear() phase"},
	{"platform_pces_latest_durable_sequence", "Latest durable sequence number reported by the PCES writer"},
	{"platform_pces_pending_rounds", "Consensus rounds buffered awaiting keystone durability"},
	{"platform_heartbeat_ticks_total", "Heartbeat ticks emitted, by source name"},
	{"platform_pces_writer_circuit_state", "PCES writer circuit breaker state: 0=closed, 1=half_open, 2=open"},
}

// Describe renders every registered metric family as a text block,
// emitted at startup — spec.md §6's "metrics documentation is generated
// at startup", grounded on the teacher's startup banner in
// control_plane/main.go.
func Describe() string {
	var b strings.Builder
	b.WriteString("platform metrics:\n")
	for _, f := range families {
		fmt.Fprintf(&b, "  %-48s %s\n", f.name, f.help)
	}
	return b.String()
}
