// Package config loads the framework's recognized options from the
// environment, modelled on control_plane/main.go: os.Getenv plus strconv
// parsing for numeric and boolean fields, defaults filled in where unset.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SchedulerType names one of the five scheduler variants as a config
// string, matching spec.md §6's {type: sequential|concurrent|direct|...}.
type SchedulerType string

const (
	Sequential      SchedulerType = "sequential"
	Concurrent      SchedulerType = "concurrent"
	Direct          SchedulerType = "direct"
	DirectThreadsafe SchedulerType = "direct_threadsafe"
	NoOp            SchedulerType = "no_op"
)

// ComponentConfig is the per-component scheduler configuration block
// from spec.md §6.
type ComponentConfig struct {
	Type              SchedulerType
	UnhandledCapacity int
	Flushable         bool
	Squelchable       bool
}

// Config holds every recognized option from spec.md §6.
type Config struct {
	DefaultPoolMultiplier int
	DefaultPoolConstant   int

	EventHasherUnhandledCapacity int

	Components map[string]ComponentConfig

	HeartbeatPeriods map[string]time.Duration

	ForceIgnorePCESSignatures bool
	ValidateInitialState     bool

	RedisAddr    string
	PostgresDSN  string
	MetricsAddr  string
	ObserveAddr  string
}

// defaultComponents lists the components spec.md §4 names as needing a
// scheduler, with reasonable defaults: validators and hashers run
// concurrent, everything touching shared mutable state runs sequential.
func defaultComponents() map[string]ComponentConfig {
	return map[string]ComponentConfig{
		"eventHasher":            {Type: Concurrent, UnhandledCapacity: 10_000},
		"internalValidator":      {Type: Concurrent, UnhandledCapacity: 10_000},
		"deduplicator":           {Type: Sequential, UnhandledCapacity: 10_000, Flushable: true, Squelchable: true},
		"signatureValidator":     {Type: Concurrent, UnhandledCapacity: 10_000},
		"orphanBuffer":           {Type: Sequential, UnhandledCapacity: 10_000, Flushable: true, Squelchable: true},
		"gossip":                 {Type: Sequential, UnhandledCapacity: 10_000, Flushable: true, Squelchable: true},
		"consensusEngine":        {Type: Sequential, UnhandledCapacity: 10_000, Flushable: true, Squelchable: true},
		"transactionPrehandler":  {Type: Concurrent, UnhandledCapacity: 10_000},
		"eventCreationManager":   {Type: Sequential, UnhandledCapacity: 1_000, Flushable: true, Squelchable: true},
		"stateHasher":            {Type: Concurrent, UnhandledCapacity: 1_000},
		"stateSignatureCollector": {Type: Sequential, UnhandledCapacity: 1_000, Flushable: true},
		"consensusRoundHandler":  {Type: Sequential, UnhandledCapacity: 1_000, Flushable: true},
		"issDetector":            {Type: Concurrent, UnhandledCapacity: 1_000},
		"eventWindowManager":     {Type: Sequential, UnhandledCapacity: 1_000, Flushable: true},
		"pcesWriter":             {Type: Sequential, UnhandledCapacity: 10_000, Flushable: true},
		"pcesKeystoneExtractor":  {Type: Sequential, UnhandledCapacity: 10_000},
		"pcesDurabilityBuffer":   {Type: Sequential, UnhandledCapacity: 10_000, Flushable: true},
	}
}

// Load reads Config from the process environment, falling back to
// defaults for anything unset.
func Load() Config {
	cfg := Config{
		DefaultPoolMultiplier:        envInt("DEFAULT_POOL_MULTIPLIER", 1),
		DefaultPoolConstant:          envInt("DEFAULT_POOL_CONSTANT", 2),
		EventHasherUnhandledCapacity: envInt("EVENT_HASHER_UNHANDLED_CAPACITY", 10_000),
		Components:                   defaultComponents(),
		HeartbeatPeriods:             make(map[string]time.Duration),
		ForceIgnorePCESSignatures:    envBool("FORCE_IGNORE_PCES_SIGNATURES", false),
		ValidateInitialState:         envBool("VALIDATE_INITIAL_STATE", true),
		RedisAddr:                    envString("REDIS_ADDR", "localhost:6379"),
		PostgresDSN:                  envString("POSTGRES_DSN", ""),
		MetricsAddr:                  envString("METRICS_ADDR", ":9090"),
		ObserveAddr:                  envString("OBSERVE_ADDR", ":8081"),
	}

	if cfg.Components["eventHasher"].UnhandledCapacity != cfg.EventHasherUnhandledCapacity {
		c := cfg.Components["eventHasher"]
		c.UnhandledCapacity = cfg.EventHasherUnhandledCapacity
		cfg.Components["eventHasher"] = c
	}

	for name := range cfg.Components {
		key := envKeyForHeartbeat(name)
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				cfg.HeartbeatPeriods[name] = d
			}
		}
	}

	return cfg
}

// envKeyForHeartbeat derives FOO_BAR_HEARTBEAT_PERIOD from a camelCase
// component name, matching spec.md §6's "*HeartbeatPeriod" naming.
func envKeyForHeartbeat(component string) string {
	var b strings.Builder
	for i, r := range component {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String()) + "_HEARTBEAT_PERIOD"
}

// Validate checks the config for internal consistency — spec.md §6's
// validateInitialState option gates whether this runs at all, since some
// test harnesses intentionally build partial or unusual configurations.
func (c Config) Validate() error {
	if !c.ValidateInitialState {
		return nil
	}
	if c.DefaultPoolMultiplier < 1 && c.DefaultPoolConstant < 1 {
		return fmt.Errorf("config: pool would have zero size (multiplier=%d, constant=%d)", c.DefaultPoolMultiplier, c.DefaultPoolConstant)
	}
	for name, cc := range c.Components {
		switch cc.Type {
		case Sequential, Concurrent, Direct, DirectThreadsafe, NoOp:
		default:
			return fmt.Errorf("config: component %q has unrecognized scheduler type %q", name, cc.Type)
		}
		if cc.UnhandledCapacity < 0 {
			return fmt.Errorf("config: component %q has negative unhandledCapacity %d", name, cc.UnhandledCapacity)
		}
	}
	return nil
}

// PoolSize computes max(1, defaultPoolMultiplier*cores+defaultPoolConstant),
// spec.md §5's scheduling model sizing formula.
func (c Config) PoolSize(cores int) int {
	n := c.DefaultPoolMultiplier*cores + c.DefaultPoolConstant
	if n < 1 {
		n = 1
	}
	return n
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
