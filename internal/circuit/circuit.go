// Package circuit implements a per-origin closed/open/half-open circuit
// breaker gating outbound requests after repeated failures.
package circuit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is one of the three circuit breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config controls the failure/recovery thresholds of a Breaker.
type Config struct {
	FailureThreshold    uint
	OpenTimeout         time.Duration
	SuccessThreshold    uint
	HalfOpenMaxRequests uint
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		OpenTimeout:         60 * time.Second,
		SuccessThreshold:    2,
		HalfOpenMaxRequests: 3,
	}
}

type circuitState struct {
	state            State
	failureCount     uint
	successCount     uint
	openedAt         time.Time
	halfOpenRequests uint
	totalFailures    uint64
	totalSuccesses   uint64
}

// Breaker tracks an independent circuit per origin.
type Breaker struct {
	log    zerolog.Logger
	config Config

	mu       sync.Mutex
	circuits map[string]*circuitState
}

// New returns a Breaker using the given configuration.
func New(log zerolog.Logger, cfg Config) *Breaker {
	return &Breaker{log: log, config: cfg, circuits: make(map[string]*circuitState)}
}

// NewDefault returns a Breaker using DefaultConfig.
func NewDefault(log zerolog.Logger) *Breaker {
	return New(log, DefaultConfig())
}

func (b *Breaker) entry(domain string) *circuitState {
	cs, ok := b.circuits[domain]
	if !ok {
		cs = &circuitState{state: Closed}
		b.circuits[domain] = cs
	}
	return cs
}

// CanProceed reports whether a request to domain may proceed right now,
// evaluating the open-timeout and half-open concurrency gate as needed.
func (b *Breaker) CanProceed(domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	cs := b.entry(domain)

	if cs.state == Open && time.Since(cs.openedAt) >= b.config.OpenTimeout {
		cs.state = HalfOpen
		cs.halfOpenRequests = 0
		cs.successCount = 0
		b.log.Debug().Str("domain", domain).Msg("circuit transitioned to half-open")
	}

	var proceed bool
	switch cs.state {
	case Closed:
		proceed = true
	case Open:
		proceed = false
	case HalfOpen:
		if cs.halfOpenRequests < b.config.HalfOpenMaxRequests {
			cs.halfOpenRequests++
			proceed = true
		}
	}

	if !proceed {
		b.log.Debug().Str("domain", domain).Msg("circuit breaker blocked request")
	}
	return proceed
}

// RecordSuccess reports a successful request to domain.
func (b *Breaker) RecordSuccess(domain string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cs := b.entry(domain)
	cs.totalSuccesses++

	switch cs.state {
	case Closed:
		cs.failureCount = 0
	case HalfOpen:
		cs.successCount++
		if cs.successCount >= b.config.SuccessThreshold {
			b.transitionToClosed(domain, cs)
		}
	case Open:
		b.log.Debug().Str("domain", domain).Msg("received success while circuit open")
	}
}

// RecordFailure reports a failed request to domain.
func (b *Breaker) RecordFailure(domain string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cs := b.entry(domain)
	cs.totalFailures++

	switch cs.state {
	case Closed:
		cs.failureCount++
		if cs.failureCount >= b.config.FailureThreshold {
			b.transitionToOpen(domain, cs)
		}
	case HalfOpen:
		b.transitionToOpen(domain, cs)
	case Open:
	}
}

func (b *Breaker) transitionToOpen(domain string, cs *circuitState) {
	cs.state = Open
	cs.openedAt = time.Now()
	cs.failureCount = 0
	cs.successCount = 0
	b.log.Warn().Str("domain", domain).Msg("circuit opened due to repeated failures")
}

func (b *Breaker) transitionToClosed(domain string, cs *circuitState) {
	cs.state = Closed
	cs.openedAt = time.Time{}
	cs.failureCount = 0
	cs.successCount = 0
	cs.halfOpenRequests = 0
	b.log.Info().Str("domain", domain).Msg("circuit closed, normal operation resumed")
}

// GetState returns domain's current state, Closed if never seen.
func (b *Breaker) GetState(domain string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cs, ok := b.circuits[domain]; ok {
		return cs.state
	}
	return Closed
}

// Reset forces domain's circuit to Closed.
func (b *Breaker) Reset(domain string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cs, ok := b.circuits[domain]; ok {
		b.transitionToClosed(domain, cs)
		b.log.Info().Str("domain", domain).Msg("manually reset circuit breaker")
	}
}

// DomainStats is a point-in-time snapshot of one origin's circuit.
type DomainStats struct {
	State          State
	FailureCount   uint
	SuccessCount   uint
	TotalFailures  uint64
	TotalSuccesses uint64
}

// GetDomainStats returns domain's stats, and whether it has been seen.
func (b *Breaker) GetDomainStats(domain string) (DomainStats, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cs, ok := b.circuits[domain]
	if !ok {
		return DomainStats{}, false
	}
	return DomainStats{
		State:          cs.state,
		FailureCount:   cs.failureCount,
		SuccessCount:   cs.successCount,
		TotalFailures:  cs.totalFailures,
		TotalSuccesses: cs.totalSuccesses,
	}, true
}

// Stats is a system-wide summary across all tracked origins.
type Stats struct {
	TotalCircuits     int
	OpenCircuits      int
	HalfOpenCircuits  int
	ClosedCircuits    int
}

// Stats summarizes the breaker's state across every tracked origin.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	var s Stats
	s.TotalCircuits = len(b.circuits)
	for _, cs := range b.circuits {
		switch cs.state {
		case Open:
			s.OpenCircuits++
		case HalfOpen:
			s.HalfOpenCircuits++
		case Closed:
			s.ClosedCircuits++
		}
	}
	return s
}

// ClearAll removes every tracked circuit.
func (b *Breaker) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.circuits = make(map[string]*circuitState)
	b.log.Info().Msg("cleared all circuit breakers")
}

// AllDomains returns every tracked origin with its current stats, for
// monitoring.
func (b *Breaker) AllDomains() map[string]DomainStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]DomainStats, len(b.circuits))
	for domain, cs := range b.circuits {
		out[domain] = DomainStats{
			State:          cs.state,
			FailureCount:   cs.failureCount,
			SuccessCount:   cs.successCount,
			TotalFailures:  cs.totalFailures,
			TotalSuccesses: cs.totalSuccesses,
		}
	}
	return out
}
