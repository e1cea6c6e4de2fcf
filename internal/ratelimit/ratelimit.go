// Package ratelimit enforces a global request budget plus a hard minimum
// per-origin gap between requests.
package ratelimit

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Limiter gates outbound requests with a global token bucket and a
// per-origin minimum delay.
type Limiter struct {
	log zerolog.Logger

	global      *rate.Limiter
	minDelay    time.Duration
	mu          sync.Mutex
	lastRequest map[string]time.Time
	mapMu       sync.Mutex
	originLocks map[string]*sync.Mutex
}

// New returns a Limiter allowing requestsPerSecond globally (bursting to the
// same value) and enforcing minDelay between requests to the same origin.
func New(log zerolog.Logger, requestsPerSecond float64, minDelay time.Duration) *Limiter {
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		log:         log,
		global:      rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		minDelay:    minDelay,
		lastRequest: make(map[string]time.Time),
		originLocks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex dedicated to origin, creating it on first use,
// so concurrent callers for the same origin serialize their wait-then-stamp
// sequence instead of racing on a stale lastRequest read.
func (l *Limiter) lockFor(origin string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()
	m, ok := l.originLocks[origin]
	if !ok {
		m = &sync.Mutex{}
		l.originLocks[origin] = m
	}
	return m
}

// WaitFor blocks until both the global budget and the per-origin spacing
// allow a request to rawURL to proceed, then records the request.
func (l *Limiter) WaitFor(ctx context.Context, rawURL string) error {
	origin, err := originOf(rawURL)
	if err != nil {
		return err
	}

	if err := l.global.Wait(ctx); err != nil {
		return err
	}

	originLock := l.lockFor(origin)
	originLock.Lock()
	defer originLock.Unlock()

	l.mu.Lock()
	last, seen := l.lastRequest[origin]
	l.mu.Unlock()

	if seen {
		elapsed := time.Since(last)
		if elapsed < l.minDelay {
			wait := l.minDelay - elapsed
			l.log.Debug().Str("origin", origin).Dur("wait", wait).Msg("rate limit delay")
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	l.mu.Lock()
	l.lastRequest[origin] = time.Now()
	l.mu.Unlock()
	return nil
}

func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}

// Stats summarizes the limiter's observable state.
type Stats struct {
	TrackedOrigins int
	GlobalLimit    float64
	MinDelay       time.Duration
}

// Stats returns a snapshot of the limiter's configuration and the number of
// distinct origins it has seen so far.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		TrackedOrigins: len(l.lastRequest),
		GlobalLimit:    float64(l.global.Limit()),
		MinDelay:       l.minDelay,
	}
}
