package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	cfg := Load()
	if cfg.DefaultPoolMultiplier != 1 || cfg.DefaultPoolConstant != 2 {
		t.Fatalf("unexpected pool defaults: %+v", cfg)
	}
	if _, ok := cfg.Components["deduplicator"]; !ok {
		t.Fatal("expected deduplicator to have a default component config")
	}
	if !cfg.ValidateInitialState {
		t.Fatal("validateInitialState should default to true")
	}
}

func TestLoadReadsHeartbeatPeriodFromEnv(t *testing.T) {
	t.Setenv("EVENT_HASHER_HEARTBEAT_PERIOD", "250ms")
	cfg := Load()
	got, ok := cfg.HeartbeatPeriods["eventHasher"]
	if !ok {
		t.Fatal("expected eventHasher heartbeat period to be set")
	}
	if got != 250*time.Millisecond {
		t.Fatalf("heartbeat period = %v, want 250ms", got)
	}
}

func TestValidateRejectsZeroSizedPool(t *testing.T) {
	cfg := Load()
	cfg.DefaultPoolMultiplier = 0
	cfg.DefaultPoolConstant = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for a zero-sized pool")
	}
}

func TestValidateSkippedWhenDisabled(t *testing.T) {
	cfg := Load()
	cfg.ValidateInitialState = false
	cfg.DefaultPoolMultiplier = 0
	cfg.DefaultPoolConstant = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validation should be skipped, got: %v", err)
	}
}

func TestPoolSizeNeverGoesBelowOne(t *testing.T) {
	cfg := Load()
	cfg.DefaultPoolMultiplier = 0
	cfg.DefaultPoolConstant = 0
	if cfg.PoolSize(4) != 1 {
		t.Fatalf("PoolSize = %d, want 1", cfg.PoolSize(4))
	}
}

func TestPoolSizeScalesWithCores(t *testing.T) {
	cfg := Load()
	cfg.DefaultPoolMultiplier = 2
	cfg.DefaultPoolConstant = 1
	if got := cfg.PoolSize(4); got != 9 {
		t.Fatalf("PoolSize(4) = %d, want 9", got)
	}
}
