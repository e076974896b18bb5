package wiring

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hgwiring/platform/platform/metrics"
	"github.com/hgwiring/platform/platform/werr"
)

// graphEdge records one soldered connection for build-time cycle
// validation and for the textual wire-diagram description.
type graphEdge struct {
	from graphNode
	to   *Scheduler
	kind SolderType
}

// isBlocking reports whether an edge could propagate backpressure and
// therefore participate in a deadlocking cycle: only default (blocking)
// edges into a scheduler that actually suspends (SEQUENTIAL, CONCURRENT)
// count. INJECT and OFFER edges never block; DIRECT/DIRECT_THREADSAFE/
// NO_OP targets never suspend (spec §4.3 "Cycle rule", §5 "Suspension
// points").
func (e graphEdge) isBlocking() bool {
	if e.kind != SolderDefault {
		return false
	}
	switch e.to.typ {
	case Sequential, Concurrent:
		return true
	default:
		return false
	}
}

// Model is the registry of schedulers, counters, wires, and heartbeats
// for one process (spec §3 "Model"). It owns every scheduler; components
// must never reference each other directly, only through wires built
// against a single explicit Model instance — there is no process-wide
// singleton (spec §4.6, §9).
type Model struct {
	mu         sync.Mutex
	pool       *Pool
	schedulers map[string]*Scheduler
	heartbeats map[string]*HeartbeatSource
	edges      []graphEdge
	built      bool
}

// NewModel creates an empty Model backed by the given shared pool (use
// DefaultPoolSize to size it per spec §5).
func NewModel(pool *Pool) *Model {
	return &Model{
		pool:       pool,
		schedulers: make(map[string]*Scheduler),
		heartbeats: make(map[string]*HeartbeatSource),
	}
}

// Pool returns the model's shared CONCURRENT-scheduler pool.
func (m *Model) Pool() *Pool { return m.pool }

// RegisterScheduler adds s to the model. Returns a *werr.BuildError if a
// scheduler with the same name is already registered.
func (m *Model) RegisterScheduler(s *Scheduler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.built {
		return werr.NewBuildError(s.name, "scheduler registered after Model.Build")
	}
	if _, exists := m.schedulers[s.name]; exists {
		return werr.NewBuildError(s.name, "duplicate scheduler name")
	}
	m.schedulers[s.name] = s
	return nil
}

// RegisterHeartbeat adds a heartbeat source to the model.
func (m *Model) RegisterHeartbeat(h *HeartbeatSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.heartbeats[h.name]; exists {
		return werr.NewBuildError(h.name, "duplicate heartbeat name")
	}
	m.heartbeats[h.name] = h
	return nil
}

// Scheduler looks up a previously registered scheduler by name.
func (m *Model) Scheduler(name string) (*Scheduler, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedulers[name]
	return s, ok
}

// Schedulers returns every registered scheduler, for periodic metrics
// polling (platform_scheduler_queue_depth, _task_count, _squelched).
func (m *Model) Schedulers() []*Scheduler {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Scheduler, 0, len(m.schedulers))
	for _, s := range m.schedulers {
		out = append(out, s)
	}
	return out
}

// ReportMetrics snapshots every scheduler's queue depth, task count, and
// squelch state into the matching Prometheus gauges. Call it on a ticker
// from the owning process (cmd/platformnode polls it once a second).
func (m *Model) ReportMetrics() {
	for _, s := range m.Schedulers() {
		metrics.SchedulerQueueDepth.WithLabelValues(s.name).Set(float64(s.QueueDepth()))
		metrics.SchedulerTaskCount.WithLabelValues(s.name).Set(float64(s.counter.Count()))
		squelched := 0.0
		if s.Squelched() {
			squelched = 1.0
		}
		metrics.SchedulerSquelched.WithLabelValues(s.name).Set(squelched)
	}
}

func (m *Model) recordEdge(from graphNode, to *Scheduler, kind SolderType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, graphEdge{from: from, to: to, kind: kind})
}

// Build validates the wire graph: any cycle crossing only blocking
// (default, SEQUENTIAL/CONCURRENT-targeted) edges is a build-time error
// (spec §4.3 "Cycle rule", §7 "Build errors"). Call it once, after every
// component has been wired and before Start.
func (m *Model) Build() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkCyclesLocked(); err != nil {
		return err
	}
	m.built = true
	return nil
}

func (m *Model) checkCyclesLocked() error {
	adj := make(map[string][]string)
	for _, e := range m.edges {
		if !e.isBlocking() {
			continue
		}
		from := e.from.nodeName()
		adj[from] = append(adj[from], e.to.nodeName())
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var path []string

	var dfs func(n string) error
	dfs = func(n string) error {
		color[n] = gray
		path = append(path, n)
		for _, next := range adj[n] {
			switch color[next] {
			case gray:
				cyclePath := append(append([]string{}, path...), next)
				return werr.NewBuildError(next, fmt.Sprintf(
					"cycle through non-INJECT edge(s): %s", strings.Join(cyclePath, " -> ")))
			case white:
				if err := dfs(next); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		color[n] = black
		return nil
	}

	names := make([]string, 0, len(adj))
	for n := range adj {
		names = append(names, n)
	}
	sort.Strings(names) // deterministic error messages
	for _, n := range names {
		if color[n] == white {
			if err := dfs(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// Start launches the pool and every scheduler and heartbeat source in the
// model. Call once, after Build succeeds.
func (m *Model) Start() {
	m.mu.Lock()
	schedulers := make([]*Scheduler, 0, len(m.schedulers))
	for _, s := range m.schedulers {
		schedulers = append(schedulers, s)
	}
	heartbeats := make([]*HeartbeatSource, 0, len(m.heartbeats))
	for _, h := range m.heartbeats {
		heartbeats = append(heartbeats, h)
	}
	m.mu.Unlock()

	for _, s := range schedulers {
		s.Start()
	}
	for _, h := range heartbeats {
		h.Start()
	}
}

// Stop halts every heartbeat, scheduler, and the pool, in that order so no
// scheduler receives a tick after it has stopped accepting work.
func (m *Model) Stop() {
	m.mu.Lock()
	schedulers := make([]*Scheduler, 0, len(m.schedulers))
	for _, s := range m.schedulers {
		schedulers = append(schedulers, s)
	}
	heartbeats := make([]*HeartbeatSource, 0, len(m.heartbeats))
	for _, h := range m.heartbeats {
		heartbeats = append(heartbeats, h)
	}
	m.mu.Unlock()

	for _, h := range heartbeats {
		h.Stop()
	}
	for _, s := range schedulers {
		s.Stop()
	}
	if m.pool != nil {
		m.pool.Stop()
	}
}

// Describe renders a textual adjacency list of schedulers, their types,
// and their soldered edges — the wire-diagram/hyperlink observable output
// named in spec §6.
func (m *Model) Describe() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.schedulers))
	for n := range m.schedulers {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		s := m.schedulers[n]
		fmt.Fprintf(&b, "scheduler %s [%s] counter=%d\n", n, s.typ, s.counter.Count())
	}
	hbNames := make([]string, 0, len(m.heartbeats))
	for n := range m.heartbeats {
		hbNames = append(hbNames, n)
	}
	sort.Strings(hbNames)
	for _, n := range hbNames {
		fmt.Fprintf(&b, "heartbeat %s\n", n)
	}
	for _, e := range m.edges {
		fmt.Fprintf(&b, "  %s --%s--> %s\n", e.from.nodeName(), e.kind, e.to.name)
	}
	return b.String()
}
