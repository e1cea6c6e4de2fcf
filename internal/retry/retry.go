// Package retry re-executes operations with exponential backoff on
// retryable failure, and tracks outcome statistics.
package retry

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config controls backoff timing and which HTTP statuses are retryable.
type Config struct {
	MaxRetries           uint
	BaseDelay            time.Duration
	MaxDelay             time.Duration
	RetryableStatusCodes map[int]struct{}
}

// DefaultConfig matches the documented defaults: 3 retries, 1s base delay,
// 60s max delay, and the standard set of transient HTTP statuses.
func DefaultConfig() Config {
	codes := map[int]struct{}{
		http.StatusRequestTimeout:      {},
		http.StatusTooManyRequests:     {},
		http.StatusInternalServerError: {},
		http.StatusBadGateway:          {},
		http.StatusServiceUnavailable:  {},
		http.StatusGatewayTimeout:      {},
	}
	return Config{
		MaxRetries:           3,
		BaseDelay:            time.Second,
		MaxDelay:             60 * time.Second,
		RetryableStatusCodes: codes,
	}
}

// IsRetryable reports whether statusCode should trigger a retry.
func (c Config) IsRetryable(statusCode int) bool {
	_, ok := c.RetryableStatusCodes[statusCode]
	return ok
}

// CalculateDelay returns min(base * 2^attempt, maxDelay).
func (c Config) CalculateDelay(attempt uint) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(2, float64(attempt))
	if max := float64(c.MaxDelay); d > max {
		d = max
	}
	return time.Duration(d)
}

// Policy executes operations under a Config, sleeping between retries.
type Policy struct {
	log    zerolog.Logger
	config Config
	stats  *statsCounter // nil unless EnableStats was called; safe for concurrent use
}

// New returns a Policy with the default configuration.
func New(log zerolog.Logger) *Policy {
	return WithConfig(log, DefaultConfig())
}

// WithConfig returns a Policy using a custom configuration.
func WithConfig(log zerolog.Logger, cfg Config) *Policy {
	return &Policy{log: log, config: cfg}
}

// Config returns the policy's retry configuration.
func (p *Policy) Config() Config { return p.config }

// EnableStats turns on outcome tracking for this policy: every subsequent
// Execute/ExecuteHTTP call records itself into the Stats returned by
// Policy.Stats(). Optional, matching the original's opt-in RetryStats.
func (p *Policy) EnableStats() {
	if p.stats == nil {
		p.stats = &statsCounter{}
	}
}

// Stats returns a snapshot of outcome counters, or the zero value if
// EnableStats was never called.
func (p *Policy) Stats() Stats {
	if p.stats == nil {
		return Stats{}
	}
	return p.stats.snapshot()
}

// Execute invokes op, retrying on error with exponential backoff up to
// MaxRetries times. The last error is returned if all attempts fail.
func (p *Policy) Execute(ctx context.Context, op func() error) error {
	var attempt uint
	for {
		err := op()
		if err == nil {
			if attempt > 0 {
				p.log.Debug().Uint("attempts", attempt+1).Msg("operation succeeded after retries")
			}
			if p.stats != nil {
				p.stats.RecordSuccess(attempt)
			}
			return nil
		}

		if attempt >= p.config.MaxRetries {
			p.log.Warn().Uint("attempts", attempt+1).Err(err).Msg("operation failed after max retries")
			if p.stats != nil {
				p.stats.RecordFailure(attempt)
			}
			return fmt.Errorf("max retries exceeded: %w", err)
		}

		delay := p.config.CalculateDelay(attempt)
		p.log.Warn().Uint("attempt", attempt+1).Dur("delay", delay).Err(err).Msg("operation failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		attempt++
	}
}

// ExecuteHTTP invokes requestFn, retrying on transport error or a retryable
// HTTP status, up to MaxRetries times. The final response (successful or
// not) is returned when retries are exhausted.
func (p *Policy) ExecuteHTTP(ctx context.Context, url string, requestFn func() (*http.Response, error)) (*http.Response, error) {
	var attempt uint
	for {
		resp, err := requestFn()
		if err != nil {
			if attempt >= p.config.MaxRetries {
				p.log.Warn().Str("url", url).Uint("attempts", attempt+1).Err(err).Msg("http request failed after max retries")
				if p.stats != nil {
					p.stats.RecordFailure(attempt)
				}
				return nil, fmt.Errorf("max retries exceeded: %w", err)
			}

			delay := p.config.CalculateDelay(attempt)
			p.log.Warn().Str("url", url).Uint("attempt", attempt+1).Dur("delay", delay).Err(err).Msg("http request failed, retrying")
			if waitErr := p.sleep(ctx, delay); waitErr != nil {
				return nil, waitErr
			}
			attempt++
			continue
		}

		if p.config.IsRetryable(resp.StatusCode) {
			if attempt < p.config.MaxRetries {
				delay := p.config.CalculateDelay(attempt)
				p.log.Warn().Str("url", url).Int("status", resp.StatusCode).Uint("attempt", attempt+1).Dur("delay", delay).Msg("retryable status, retrying")
				resp.Body.Close()
				if waitErr := p.sleep(ctx, delay); waitErr != nil {
					return nil, waitErr
				}
				attempt++
				continue
			}
			p.log.Warn().Str("url", url).Int("status", resp.StatusCode).Uint("attempts", attempt+1).Msg("retryable status persisted after max retries")
			if p.stats != nil {
				p.stats.RecordFailure(attempt)
			}
			return resp, nil
		}

		if attempt > 0 {
			p.log.Debug().Str("url", url).Uint("attempts", attempt+1).Msg("http request succeeded after retries")
		}
		if p.stats != nil {
			p.stats.RecordSuccess(attempt)
		}
		return resp, nil
	}
}

func (p *Policy) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is a point-in-time snapshot of outcome counters, safe to copy and
// pass around freely.
type Stats struct {
	TotalOperations    uint64
	FirstTrySuccess    uint64
	RetriedOperations  uint64
	FailedOperations   uint64
	TotalRetryAttempts uint64
}

// SuccessRate returns the fraction of operations (first-try or retried) that
// ultimately succeeded, in [0,1].
func (s Stats) SuccessRate() float64 {
	if s.TotalOperations == 0 {
		return 0
	}
	successful := s.FirstTrySuccess + s.RetriedOperations
	return float64(successful) / float64(s.TotalOperations)
}

// AvgRetryAttempts returns the mean number of retry attempts per operation.
func (s Stats) AvgRetryAttempts() float64 {
	if s.TotalOperations == 0 {
		return 0
	}
	return float64(s.TotalRetryAttempts) / float64(s.TotalOperations)
}

// statsCounter accumulates outcome counts with atomic counters, since a
// Policy (and the statsCounter it owns) may be shared across concurrent
// crawl goroutines.
type statsCounter struct {
	totalOperations    atomic.Uint64
	firstTrySuccess    atomic.Uint64
	retriedOperations  atomic.Uint64
	failedOperations   atomic.Uint64
	totalRetryAttempts atomic.Uint64
}

// RecordSuccess records a successful operation that took the given number of
// retry attempts (0 = succeeded on the first try).
func (s *statsCounter) RecordSuccess(attempts uint) {
	s.totalOperations.Add(1)
	if attempts == 0 {
		s.firstTrySuccess.Add(1)
		return
	}
	s.retriedOperations.Add(1)
	s.totalRetryAttempts.Add(uint64(attempts))
}

// RecordFailure records an operation that failed after the given number of
// retry attempts.
func (s *statsCounter) RecordFailure(attempts uint) {
	s.totalOperations.Add(1)
	s.failedOperations.Add(1)
	s.totalRetryAttempts.Add(uint64(attempts))
}

// snapshot takes a point-in-time copy of the counters into a plain Stats
// value, safe to pass around and read without further synchronization.
func (s *statsCounter) snapshot() Stats {
	return Stats{
		TotalOperations:    s.totalOperations.Load(),
		FirstTrySuccess:    s.firstTrySuccess.Load(),
		RetriedOperations:  s.retriedOperations.Load(),
		FailedOperations:   s.failedOperations.Load(),
		TotalRetryAttempts: s.totalRetryAttempts.Load(),
	}
}
