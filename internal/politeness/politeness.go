// Package politeness tracks, per origin, the time since the last request and
// enforces a respectful delay before the next one.
package politeness

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Manager enforces a per-origin delay, falling back to a default when no
// custom delay (typically from robots.txt) has been set.
type Manager struct {
	log zerolog.Logger

	mapMu        sync.Mutex
	originLocks  map[string]*sync.Mutex
	mu           sync.Mutex
	lastRequest  map[string]time.Time
	crawlDelays  map[string]time.Duration
	defaultDelay time.Duration
	maxRetries   int
	baseBackoff  time.Duration
	maxBackoff   time.Duration
}

// New returns a Manager with the given default delay and retry count, base
// backoff 1s and max backoff 60s.
func New(log zerolog.Logger, defaultDelay time.Duration, maxRetries int) *Manager {
	log.Info().Dur("default_delay", defaultDelay).Int("max_retries", maxRetries).Msg("politeness manager initialized")
	return &Manager{
		log:          log,
		originLocks:  make(map[string]*sync.Mutex),
		lastRequest:  make(map[string]time.Time),
		crawlDelays:  make(map[string]time.Duration),
		defaultDelay: defaultDelay,
		maxRetries:   maxRetries,
		baseBackoff:  time.Second,
		maxBackoff:   60 * time.Second,
	}
}

// lockFor returns the mutex dedicated to origin, creating it on first use.
// Holding this lock serializes the whole wait-then-stamp sequence for a
// single origin without holding any lock across the subsequent HTTP
// round-trip, which happens after WaitBeforeRequest returns.
func (m *Manager) lockFor(origin string) *sync.Mutex {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()
	l, ok := m.originLocks[origin]
	if !ok {
		l = &sync.Mutex{}
		m.originLocks[origin] = l
	}
	return l
}

// WaitBeforeRequest blocks until delayFor(origin) has elapsed since that
// origin's last request, then stamps the current time as the last request.
// Concurrent callers for the same origin are serialized so that no two
// requests begin closer together than the origin's delay.
func (m *Manager) WaitBeforeRequest(rawURL string) error {
	origin, err := extractDomain(rawURL)
	if err != nil {
		return err
	}

	lock := m.lockFor(origin)
	lock.Lock()
	defer lock.Unlock()

	delay := m.delayFor(origin)

	m.mu.Lock()
	last, seen := m.lastRequest[origin]
	m.mu.Unlock()

	if seen {
		if elapsed := time.Since(last); elapsed < delay {
			wait := delay - elapsed
			m.log.Debug().Str("domain", origin).Dur("wait", wait).Msg("politeness delay")
			time.Sleep(wait)
		}
	}

	m.mu.Lock()
	m.lastRequest[origin] = time.Now()
	m.mu.Unlock()
	return nil
}

func (m *Manager) delayFor(origin string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.crawlDelays[origin]; ok {
		return d
	}
	return m.defaultDelay
}

// SetCrawlDelay installs a custom per-origin delay, typically sourced from a
// robots.txt Crawl-delay directive.
func (m *Manager) SetCrawlDelay(origin string, delay time.Duration) {
	m.log.Info().Str("domain", origin).Dur("delay", delay).Msg("setting crawl delay")
	m.mu.Lock()
	m.crawlDelays[origin] = delay
	m.mu.Unlock()
}

// CalculateBackoff returns min(base * 2^attempt, maxBackoff).
func (m *Manager) CalculateBackoff(attempt uint) time.Duration {
	backoff := m.baseBackoff * time.Duration(1<<attempt)
	if backoff > m.maxBackoff || backoff <= 0 {
		backoff = m.maxBackoff
	}
	m.log.Debug().Uint("attempt", attempt).Dur("backoff", backoff).Msg("calculated backoff")
	return backoff
}

func extractDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in URL: %s", rawURL)
	}
	return u.Host, nil
}

// Stats summarizes the politeness manager's in-memory state.
type Stats struct {
	TrackedDomains           int
	DomainsWithCustomDelays  int
	DefaultDelay             time.Duration
	MaxRetries               int
}

// Stats returns a snapshot of the manager's tracked-domain counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		TrackedDomains:          len(m.lastRequest),
		DomainsWithCustomDelays: len(m.crawlDelays),
		DefaultDelay:            m.defaultDelay,
		MaxRetries:              m.maxRetries,
	}
}

// Clear wipes all tracked state; intended for test setup.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRequest = make(map[string]time.Time)
	m.crawlDelays = make(map[string]time.Duration)
	m.log.Info().Msg("cleared politeness tracking data")
}
