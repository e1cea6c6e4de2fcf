// Package queue is the in-repository, in-memory job queue: a buffered FIFO
// of pending crawl jobs plus a per-id lookup table with a time-to-live, used
// by the Worker to dequeue, track, and complete crawl jobs. Nothing is
// persisted across process restarts.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/EngineSearch/crawler/internal/model"
)

const defaultTTL = 24 * time.Hour

type record struct {
	job       *model.CrawlJob
	expiresAt time.Time
}

// Queue is a thread-safe FIFO of CrawlJob records backed by a buffered
// channel, with a side table for id-based lookup and update.
type Queue struct {
	log zerolog.Logger

	pending chan *model.CrawlJob

	mu      sync.RWMutex
	records map[string]*record
	ttl     time.Duration
	closed  bool
}

// New returns an empty Queue with room for capacity pending jobs.
func New(log zerolog.Logger, capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Queue{
		log:     log,
		pending: make(chan *model.CrawlJob, capacity),
		records: make(map[string]*record),
		ttl:     defaultTTL,
	}
}

// Enqueue adds job to the pending queue and its lookup record.
func (q *Queue) Enqueue(job *model.CrawlJob) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue closed")
	}
	q.records[job.ID] = &record{job: job.Clone(), expiresAt: time.Now().Add(q.ttl)}
	q.mu.Unlock()

	select {
	case q.pending <- job:
		return nil
	default:
		return fmt.Errorf("queue full")
	}
}

// Dequeue blocks until a job is available or ctx is cancelled, returning
// (nil, false) in the latter case.
func (q *Queue) Dequeue(ctx context.Context) (*model.CrawlJob, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case job, ok := <-q.pending:
		if !ok {
			return nil, false
		}
		return job, true
	}
}

// Update replaces the stored record for job.ID, refreshing its TTL.
func (q *Queue) Update(job *model.CrawlJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records[job.ID] = &record{job: job.Clone(), expiresAt: time.Now().Add(q.ttl)}
}

// Complete marks a job Completed with final counters.
func (q *Queue) Complete(jobID string, pagesCrawled, pagesIndexed int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[jobID]
	if !ok {
		return
	}
	now := time.Now()
	rec.job.Status = model.JobCompleted
	rec.job.PagesCrawled = pagesCrawled
	rec.job.PagesIndexed = pagesIndexed
	rec.job.CompletedAt = &now
	rec.expiresAt = now.Add(q.ttl)
}

// Fail marks a job Failed with an error message.
func (q *Queue) Fail(jobID, errMsg string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[jobID]
	if !ok {
		return
	}
	now := time.Now()
	rec.job.Status = model.JobFailed
	rec.job.Error = errMsg
	rec.job.CompletedAt = &now
	rec.expiresAt = now.Add(q.ttl)
}

// Get looks up a job by id, returning (nil, false) if it doesn't exist or
// its TTL has expired.
func (q *Queue) Get(jobID string) (*model.CrawlJob, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	rec, ok := q.records[jobID]
	if !ok || time.Now().After(rec.expiresAt) {
		return nil, false
	}
	return rec.job.Clone(), true
}

// PendingCount returns the number of jobs waiting to be dequeued.
func (q *Queue) PendingCount() int {
	return len(q.pending)
}

// Close stops accepting new jobs and closes the pending channel.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		close(q.pending)
		q.closed = true
	}
}

// EvictExpired removes records whose TTL has elapsed; callers may run this
// periodically since records are never evicted automatically otherwise.
func (q *Queue) EvictExpired() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	evicted := 0
	for id, rec := range q.records {
		if now.After(rec.expiresAt) {
			delete(q.records, id)
			evicted++
		}
	}
	return evicted
}
