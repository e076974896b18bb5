// Command platformnode assembles one platform model: the intake pipeline,
// consensus round handling, the PCES durability buffer, and the reconnect
// coordinator, then serves metrics and a live wire-diagram stream.
//
// Grounded end to end on control_plane/main.go: env-driven config, a
// startup banner, http.ListenAndServe with promhttp.Handler mounted
// alongside an application endpoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hgwiring/platform/platform/components"
	"github.com/hgwiring/platform/platform/config"
	"github.com/hgwiring/platform/platform/coordinator"
	"github.com/hgwiring/platform/platform/metrics"
	"github.com/hgwiring/platform/platform/observe"
	"github.com/hgwiring/platform/platform/pces"
	"github.com/hgwiring/platform/platform/wiring"

	"github.com/redis/go-redis/v9"
)

func schedulerFor(m *wiring.Model, name string, cc config.ComponentConfig) *wiring.Scheduler {
	capacity := int64(cc.UnhandledCapacity)
	var counter wiring.Counter
	if capacity > 0 {
		counter = wiring.NewBackpressuringTaskCounter(capacity, 10*time.Millisecond).WithName(name)
	} else {
		counter = wiring.NewTaskCounter()
	}

	var onErr wiring.UncaughtErrorHandler = func(schedName string, recovered any) {
		metrics.SchedulerUncaughtErrors.WithLabelValues(schedName).Inc()
		log.Printf("[PLATFORMNODE] scheduler %q: uncaught error: %v", schedName, recovered)
	}

	var s *wiring.Scheduler
	switch cc.Type {
	case config.Sequential:
		s = wiring.NewSequentialScheduler(name, counter, cc.Flushable, onErr)
	case config.Concurrent:
		s = wiring.NewConcurrentScheduler(name, counter, m.Pool(), cc.Flushable, onErr)
	case config.Direct:
		s = wiring.NewDirectScheduler(name, counter, onErr)
	case config.DirectThreadsafe:
		s = wiring.NewDirectThreadsafeScheduler(name, counter, onErr)
	case config.NoOp:
		s = wiring.NewNoOpScheduler(name)
	default:
		s = wiring.NewSequentialScheduler(name, counter, cc.Flushable, onErr)
	}
	if err := m.RegisterScheduler(s); err != nil {
		log.Fatalf("[PLATFORMNODE] registering scheduler %q: %v", name, err)
	}
	return s
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[PLATFORMNODE] invalid configuration: %v", err)
	}

	poolSize := cfg.PoolSize(runtime.NumCPU())
	pool := wiring.NewPool(poolSize)
	m := wiring.NewModel(pool)

	// --- schedulers, one per component, per spec.md §6's per-component
	// scheduler configuration table ---
	hasherSched := schedulerFor(m, "eventHasher", cfg.Components["eventHasher"])
	internalValidatorSched := schedulerFor(m, "internalValidator", cfg.Components["internalValidator"])
	dedupSched := schedulerFor(m, "deduplicator", cfg.Components["deduplicator"])
	sigSched := schedulerFor(m, "signatureValidator", cfg.Components["signatureValidator"])
	orphanSched := schedulerFor(m, "orphanBuffer", cfg.Components["orphanBuffer"])
	gossipSched := schedulerFor(m, "gossip", cfg.Components["gossip"])
	engineSched := schedulerFor(m, "consensusEngine", cfg.Components["consensusEngine"])
	prehandlerSched := schedulerFor(m, "transactionPrehandler", cfg.Components["transactionPrehandler"])
	ecmSched := schedulerFor(m, "eventCreationManager", cfg.Components["eventCreationManager"])
	stateHasherSched := schedulerFor(m, "stateHasher", cfg.Components["stateHasher"])
	sigCollectorSched := schedulerFor(m, "stateSignatureCollector", cfg.Components["stateSignatureCollector"])
	roundHandlerSched := schedulerFor(m, "consensusRoundHandler", cfg.Components["consensusRoundHandler"])
	windowMgrSched := schedulerFor(m, "eventWindowManager", cfg.Components["eventWindowManager"])
	writerSched := schedulerFor(m, "pcesWriter", cfg.Components["pcesWriter"])
	keystoneSched := schedulerFor(m, "pcesKeystoneExtractor", cfg.Components["pcesKeystoneExtractor"])
	bufferSched := schedulerFor(m, "pcesDurabilityBuffer", cfg.Components["pcesDurabilityBuffer"])

	ctx := context.Background()

	// --- domain collaborators (wiring-grade defaults, spec.md §5.6) ---
	hasher := components.NewDefaultEventHasher()
	internalValidator := &components.DefaultInternalValidator{}
	dedup := components.NewDefaultDeduplicator()
	var sequencer components.Sequencer
	if cfg.PostgresDSN != "" {
		ledger, err := pces.NewSequencerLedger(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("[PLATFORMNODE] connecting sequencer ledger: %v", err)
		}
		defer ledger.Close()
		sequencer = ledger
	}
	sigValidator := components.NewDefaultSignatureValidator(sequencer)
	orphanBuf := &components.DefaultOrphanBuffer{}
	gossip := &components.DefaultGossip{}
	prehandler := &components.DefaultTransactionPrehandler{}
	ecm := &components.DefaultEventCreationManager{}
	stateHasher := &components.DefaultStateHasher{}
	sigCollector := components.NewDefaultStateSignatureCollector(2)
	roundHandler := &components.DefaultConsensusRoundHandler{}
	issDetector := &components.DefaultISSDetector{}
	windowMgr := components.NewDefaultEventWindowManager(26)

	// --- PCES durability plumbing ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	writerClient, err := pces.NewRedisWriterClient(ctx, redisClient, "platformnode")
	if err != nil {
		log.Fatalf("[PLATFORMNODE] connecting PCES writer client: %v", err)
	}
	writer := pces.NewWriterComponent(writerSched, "pces-writer", writerClient)
	keystoneIn, keystoneOut := pces.KeystoneExtractor(keystoneSched, "pces-keystone")
	buffer := pces.NewDurabilityBuffer(bufferSched, "pces-buffer")

	// --- intake pipeline wiring: Event -> Hash -> InternalValidate -> Dedup
	// -> Validate -> Orphan -> {Gossip, ConsensusEngine} ---
	hashIn, hashOut := wiring.NewTransformer(hasherSched, "event-hasher", hasher.Hash)

	internalValidatorIn, internalValidatorOut := wiring.NewFilter(internalValidatorSched, "internal-validator", internalValidator.Validate)
	wiring.SolderDefaultEdge(m, hashOut, internalValidatorIn)

	dedupIn, dedupOut := wiring.NewFilter(dedupSched, "deduplicator", func(h components.HashedEvent) bool {
		return !dedup.IsDuplicate(h)
	})
	wiring.SolderDefaultEdge(m, internalValidatorOut, dedupIn)

	type validated = components.ValidatedEvent
	sigIn, sigOut := wiring.NewSplitter(sigSched, "signature-validator", func(h components.HashedEvent) []validated {
		v, ok := sigValidator.Validate(h)
		if !ok {
			return nil
		}
		return []validated{v}
	})
	wiring.SolderDefaultEdge(m, dedupOut, sigIn)

	orphanIn, orphanOut := wiring.NewSplitter(orphanSched, "orphan-buffer", orphanBuf.Admit)
	wiring.SolderDefaultEdge(m, sigOut, orphanIn)

	gossipIn := wiring.BindInputWire(gossipSched, "gossip-in", gossip.Broadcast)
	wiring.SolderDefaultEdge(m, orphanOut, gossipIn)

	prehandlerIn := wiring.BindInputWire(prehandlerSched, "prehandler-in", func(h components.HashedEvent) {
		prehandler.Prehandle(h.Event)
	})
	wiring.SolderDefaultEdge(m, hashOut, prehandlerIn)

	roundOut := wiring.NewOutputWire[components.Round](engineSched, "consensus-round-out")
	engine := components.NewDefaultConsensusEngine(roundOut, 50)
	engineIn := wiring.BindInputWire(engineSched, "consensus-engine-in", engine.AddEvent)
	wiring.SolderDefaultEdge(m, orphanOut, engineIn)

	// --- round fan-out: keystone flush must reach the writer before the
	// buffer admits the round, so both are listed sinks of one ordered
	// solder over the same Round value (spec.md §4.5) ---
	_ = wiring.NewOrderedSolder(m, roundOut, keystoneIn, buffer.RoundInput())
	wiring.SolderDefaultEdge(m, keystoneOut, writer.FlushRequestInput())
	wiring.SolderInjectEdge(m, writer.DurableMarkOutput(), buffer.DurableMarkInput())

	ecmIn := wiring.BindInputWire(ecmSched, "event-creation-manager-in", ecm.NotifyRound)
	roundHandlerIn := wiring.BindInputWire(roundHandlerSched, "consensus-round-handler-in", roundHandler.HandleRound)
	wiring.SolderDefaultEdge(m, buffer.Output(), ecmIn)
	wiring.SolderDefaultEdge(m, buffer.Output(), roundHandlerIn)

	// --- state hashing / ISS detection ---
	stateHashIn, stateHashOut := wiring.NewTransformer(stateHasherSched, "state-hasher", stateHasher.Hash)
	wiring.SolderDefaultEdge(m, buffer.Output(), stateHashIn)

	sigCollectorIn := wiring.BindInputWire(sigCollectorSched, "state-signature-collector-in", func(h components.StateHash) {
		sigCollector.Collect(components.StateSignature{Round: h.Round, NodeID: "local"})
	})
	wiring.SolderDefaultEdge(m, stateHashOut, sigCollectorIn)

	_ = issDetector // wired per-peer at the gossip transport layer; not exercised without a real transport

	// --- event window: derived from each round, pushed to window-aware
	// sinks over INJECT edges so it never forms a cycle (spec.md §6) ---
	windowIn, windowOut := wiring.NewTransformer(windowMgrSched, "event-window-manager", windowMgr.Advance)
	wiring.SolderDefaultEdge(m, buffer.Output(), windowIn)
	wiring.SolderInjectEdge(m, windowOut, wiring.BindInputWire(dedupSched, "dedup-window-in", dedup.SetEventWindow))
	wiring.SolderInjectEdge(m, windowOut, wiring.BindInputWire(orphanSched, "orphan-window-in", orphanBuf.SetEventWindow))
	wiring.SolderInjectEdge(m, windowOut, wiring.BindInputWire(ecmSched, "ecm-window-in", ecm.SetEventWindow))

	// --- heartbeats ---
	staleAfter := 30 * time.Second
	if p, ok := cfg.HeartbeatPeriods["pcesDurabilityBuffer"]; ok {
		staleAfter = p
	}
	staleCheckHB := wiring.NewHeartbeatSource("pces-stale-check", 1.0/10.0)
	if err := m.RegisterHeartbeat(staleCheckHB); err != nil {
		log.Fatalf("[PLATFORMNODE] registering heartbeat: %v", err)
	}
	wiring.SolderOfferEdge(m, staleCheckHB.Output(), buffer.StaleRoundCheckInput(staleAfter))
	circuitGaugeIn := wiring.BindInputWire(bufferSched, "pces-circuit-gauge-in", func(wiring.NoInput) {
		metrics.PCESWriterCircuitState.Set(float64(writer.CircuitState()))
	})
	wiring.SolderOfferEdge(m, staleCheckHB.Output(), circuitGaugeIn)

	if err := m.Build(); err != nil {
		log.Fatalf("[PLATFORMNODE] build failed: %v", err)
	}
	m.Start()
	defer m.Stop()

	// --- coordinator: one ComponentRef per component, reused everywhere
	// that component appears in the four-phase algorithm ---
	internalValidatorRef := coordinator.NewComponentRef(internalValidatorSched)
	dedupRef := coordinator.NewComponentRef(dedupSched).WithClear(wiring.BindInputWire(dedupSched, "dedup-clear-in", func(coordinator.ClearCommand) { dedup.Clear() }))
	sigRef := coordinator.NewComponentRef(sigSched)
	orphanRef := coordinator.NewComponentRef(orphanSched).WithClear(wiring.BindInputWire(orphanSched, "orphan-clear-in", func(coordinator.ClearCommand) { orphanBuf.Clear() }))
	gossipRef := coordinator.NewComponentRef(gossipSched).WithClear(wiring.BindInputWire(gossipSched, "gossip-clear-in", func(coordinator.ClearCommand) { gossip.Clear() }))
	engineRef := coordinator.NewComponentRef(engineSched)
	prehandlerRef := coordinator.NewComponentRef(prehandlerSched)
	ecmRef := coordinator.NewComponentRef(ecmSched).WithClear(wiring.BindInputWire(ecmSched, "ecm-clear-in", func(coordinator.ClearCommand) { ecm.Clear() }))
	stateHasherRef := coordinator.NewComponentRef(stateHasherSched)
	sigCollectorRef := coordinator.NewComponentRef(sigCollectorSched).WithClear(wiring.BindInputWire(sigCollectorSched, "sigcollector-clear-in", func(coordinator.ClearCommand) { sigCollector.Clear() }))
	bufferRef := coordinator.NewComponentRef(bufferSched).WithClear(wiring.BindInputWire(bufferSched, "buffer-clear-in", func(coordinator.ClearCommand) { buffer.Clear() }))
	roundHandlerRef := coordinator.NewComponentRef(roundHandlerSched)

	co := coordinator.New(coordinator.Config{
		Intake: coordinator.IntakeRefs{
			InternalValidator:     internalValidatorRef,
			Deduplicator:          dedupRef,
			SignatureValidator:    sigRef,
			OrphanBuffer:          orphanRef,
			Gossip:                gossipRef,
			ConsensusEngine:       engineRef,
			TransactionPrehandler: prehandlerRef,
			EventCreationManager:  ecmRef,
		},
		Squelched:    []*coordinator.ComponentRef{engineRef, ecmRef, roundHandlerRef},
		Phase2Extra:  []*coordinator.ComponentRef{stateHasherRef, sigCollectorRef, bufferRef, roundHandlerRef},
		ClearTargets: []*coordinator.ComponentRef{dedupRef, orphanRef, gossipRef, sigCollectorRef, ecmRef, bufferRef},
	})
	_ = co // exposed for an operator reconnect trigger; no HTTP endpoint calls it yet

	// --- observability ---
	hub := observe.NewWireHub(m.Describe, time.Second)
	go hub.Run(ctx)

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.ReportMetrics()
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var e components.Event
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		hashIn.Put(e)
		w.WriteHeader(http.StatusAccepted)
	})

	observeMux := http.NewServeMux()
	observeMux.Handle("/wires", hub)

	fmt.Println("==================================================")
	fmt.Println("PLATFORM NODE STARTING")
	fmt.Println("==================================================")
	fmt.Printf("Pool size:          %d\n", poolSize)
	fmt.Printf("Redis addr:         %s\n", cfg.RedisAddr)
	fmt.Printf("Metrics addr:       %s\n", cfg.MetricsAddr)
	fmt.Printf("Observe addr:       %s\n", cfg.ObserveAddr)
	fmt.Println("==================================================")
	fmt.Print(metrics.Describe())
	fmt.Println("==================================================")

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[PLATFORMNODE] http server: %v", err)
		}
	}()

	observeSrv := &http.Server{Addr: cfg.ObserveAddr, Handler: observeMux}
	go func() {
		if err := observeSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[PLATFORMNODE] observe server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[PLATFORMNODE] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	observeSrv.Shutdown(shutdownCtx)
}
