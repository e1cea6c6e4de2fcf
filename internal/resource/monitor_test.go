package resource

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testMonitor(cfg Config) *Monitor {
	m := New(zerolog.Nop(), cfg)
	// pin the sampled readings so tests don't depend on the host
	m.mu.Lock()
	m.availableMem = 1 << 30 // 1GB
	m.loadPerCore = 0.1
	m.mu.Unlock()
	return m
}

func TestPermitsClampedToMaxParallel(t *testing.T) {
	m := testMonitor(Config{MaxParallel: 4})
	if got := m.Permits(); got != 4 {
		t.Errorf("Permits() = %d, want 4 (1GB budget should hit the ceiling)", got)
	}
}

func TestPermitsAtLeastOne(t *testing.T) {
	m := testMonitor(Config{})
	m.mu.Lock()
	m.availableMem = 0
	m.mu.Unlock()
	if got := m.Permits(); got != 1 {
		t.Errorf("Permits() = %d, want 1 with no memory budget", got)
	}
}

func TestPermitsShrinkWithLargerFetches(t *testing.T) {
	m := testMonitor(Config{MaxParallel: 64})

	lean := m.Permits()
	for i := 0; i < 20; i++ {
		m.ObserveFetch(16 << 20) // 16MB bodies
	}
	heavy := m.Permits()

	if heavy >= lean {
		t.Errorf("Permits() = %d after heavy fetches, want < %d", heavy, lean)
	}
}

func TestObserveFetchDecayingMean(t *testing.T) {
	m := testMonitor(Config{})

	m.ObserveFetch(1000)
	if m.fetchBytes != 1000 {
		t.Fatalf("fetchBytes = %d, want 1000 after first observation", m.fetchBytes)
	}
	m.ObserveFetch(9000)
	// (1000*7 + 9000) / 8 = 2000
	if m.fetchBytes != 2000 {
		t.Errorf("fetchBytes = %d, want 2000", m.fetchBytes)
	}
	m.ObserveFetch(0) // ignored
	if m.fetchCount != 2 {
		t.Errorf("fetchCount = %d, want 2 (zero-size bodies not counted)", m.fetchCount)
	}
}

func TestPermitsHalveUnderLoad(t *testing.T) {
	m := testMonitor(Config{MaxParallel: 64, CPUHighWater: 0.9})

	calm := m.Permits()
	m.mu.Lock()
	m.loadPerCore = 2.0
	m.mu.Unlock()
	busy := m.Permits()

	if calm < 2 {
		t.Skipf("calm permits %d too small to observe halving", calm)
	}
	if busy > calm/2 {
		t.Errorf("Permits() = %d under load, want <= %d", busy, calm/2)
	}
}

func TestStatusReflectsReadings(t *testing.T) {
	m := testMonitor(Config{})
	m.ObserveFetch(4096)

	s := m.Status()
	if s.AvailableMemory != 1<<30 {
		t.Errorf("AvailableMemory = %d, want %d", s.AvailableMemory, 1<<30)
	}
	if s.FetchesObserved != 1 || s.FetchFootprint != 4096 {
		t.Errorf("FetchesObserved = %d, FetchFootprint = %d", s.FetchesObserved, s.FetchFootprint)
	}
	if s.Permits < 1 {
		t.Errorf("Permits = %d, want >= 1", s.Permits)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	m := New(zerolog.Nop(), Config{})
	m.Start(10 * time.Millisecond)
	m.Start(10 * time.Millisecond)
	m.Stop()
	m.Stop()
}
