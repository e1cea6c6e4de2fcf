// Package resource sizes the crawler's fetch parallelism from what fetching
// actually costs: it learns the memory footprint of a fetch from the response
// bodies the crawler observes, budgets a fraction of the OS-reported free
// memory against that footprint, and backs off when the host's load average
// climbs past what its cores can absorb.
package resource

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// parseOverhead scales a raw response-body size up to the working-set cost of
// fetching it: the body is held once as bytes, once as the goquery DOM, and
// the extractors' intermediate strings roughly triple it again.
const parseOverhead = 5

// Config tunes the fetch governor.
type Config struct {
	MemoryHeadroomPct int     // percent of OS-available memory fetches may commit
	CPUHighWater      float64 // 1-min load average per core above which parallelism halves
	MaxParallel       int     // hard ceiling on concurrent fetches
	MinFetchBytes     int64   // floor for the learned per-fetch body size
}

// DefaultConfig budgets half of free memory, halves parallelism once the
// load average per core passes 0.9, and assumes no fetch costs less than a
// 256KB body until real responses teach it otherwise.
func DefaultConfig() Config {
	return Config{
		MemoryHeadroomPct: 50,
		CPUHighWater:      0.9,
		MaxParallel:       32,
		MinFetchBytes:     256 * 1024,
	}
}

// Monitor samples host memory and load in the background and answers, at any
// moment, how many fetches the host can afford to run at once.
type Monitor struct {
	log zerolog.Logger
	cfg Config

	mu           sync.Mutex
	availableMem int64   // last OS-reported available bytes
	loadPerCore  float64 // last 1-min load average divided by core count
	fetchBytes   int64   // decaying mean of observed response-body sizes
	fetchCount   uint64

	cancel context.CancelFunc
}

// New returns a Monitor primed with one immediate sample, so Permits gives a
// sane answer even if Start is never called.
func New(log zerolog.Logger, cfg Config) *Monitor {
	def := DefaultConfig()
	if cfg.MemoryHeadroomPct <= 0 {
		cfg.MemoryHeadroomPct = def.MemoryHeadroomPct
	}
	if cfg.CPUHighWater <= 0 {
		cfg.CPUHighWater = def.CPUHighWater
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = def.MaxParallel
	}
	if cfg.MinFetchBytes <= 0 {
		cfg.MinFetchBytes = def.MinFetchBytes
	}

	m := &Monitor{log: log, cfg: cfg}
	m.sample()
	return m
}

// sample refreshes the memory and load readings. Failed reads keep the
// previous values, so a flaky proc filesystem degrades to stale data rather
// than to a bogus zero.
func (m *Monitor) sample() {
	vmStat, memErr := mem.VirtualMemory()
	loadStat, loadErr := load.Avg()

	m.mu.Lock()
	defer m.mu.Unlock()

	if memErr != nil {
		m.log.Warn().Err(memErr).Msg("failed to read available memory, keeping last reading")
	} else {
		m.availableMem = int64(vmStat.Available)
	}
	if loadErr != nil {
		m.log.Warn().Err(loadErr).Msg("failed to read load average, keeping last reading")
	} else {
		m.loadPerCore = loadStat.Load1 / float64(runtime.NumCPU())
	}
}

// Start launches the background sampler. Idempotent: a second call while
// already running is a no-op.
func (m *Monitor) Start(interval time.Duration) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
}

// Stop cancels the background sampler.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// ObserveFetch feeds the size of a fetched response body into the learned
// per-fetch footprint. Recent fetches dominate: the mean decays by 1/8 per
// observation, so a run of image-heavy pages raises the estimate within a
// dozen fetches and a return to lean pages lowers it just as fast.
func (m *Monitor) ObserveFetch(bodyBytes int64) {
	if bodyBytes <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchCount == 0 {
		m.fetchBytes = bodyBytes
	} else {
		m.fetchBytes = (m.fetchBytes*7 + bodyBytes) / 8
	}
	m.fetchCount++
}

// Permits returns how many fetches may run concurrently right now: the
// memory budget divided by the working-set cost of one fetch, capped at
// MaxParallel, halved under CPU saturation, and never less than 1.
func (m *Monitor) Permits() int {
	m.mu.Lock()
	avail := m.availableMem
	loadPerCore := m.loadPerCore
	footprint := m.fetchBytes
	m.mu.Unlock()

	if footprint < m.cfg.MinFetchBytes {
		footprint = m.cfg.MinFetchBytes
	}
	perFetch := footprint * parseOverhead

	budget := avail / 100 * int64(m.cfg.MemoryHeadroomPct)
	n := int(budget / perFetch)

	if n > m.cfg.MaxParallel {
		n = m.cfg.MaxParallel
	}

	if loadPerCore > m.cfg.CPUHighWater {
		n /= 2
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Status is a point-in-time snapshot of the governor's inputs and output.
type Status struct {
	AvailableMemory int64
	LoadPerCore     float64
	FetchFootprint  int64 // learned body size, before the parse multiplier
	FetchesObserved uint64
	Permits         int
}

// Status reports the governor's current readings.
func (m *Monitor) Status() Status {
	permits := m.Permits()

	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		AvailableMemory: m.availableMem,
		LoadPerCore:     m.loadPerCore,
		FetchFootprint:  m.fetchBytes,
		FetchesObserved: m.fetchCount,
		Permits:         permits,
	}
}
