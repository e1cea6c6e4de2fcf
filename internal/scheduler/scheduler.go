// Package scheduler maintains a priority queue of recurring crawl tasks,
// scored by priority, overdue time, and freshness.
package scheduler

import (
	"container/heap"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Frequency is how often a URL should be recrawled.
type Frequency string

const (
	Hourly  Frequency = "hourly"
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Never   Frequency = "never"
)

// Duration returns the recrawl interval for f, or (0, false) for Never.
func (f Frequency) Duration() (time.Duration, bool) {
	switch f {
	case Hourly:
		return time.Hour, true
	case Daily:
		return 24 * time.Hour, true
	case Weekly:
		return 7 * 24 * time.Hour, true
	case Monthly:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// FrequencyFromChangeRate suggests a recrawl frequency from an observed
// change rate, in changes per day.
func FrequencyFromChangeRate(changesPerDay float64) Frequency {
	switch {
	case changesPerDay >= 24.0:
		return Hourly
	case changesPerDay >= 1.0:
		return Daily
	case changesPerDay >= 1.0/7.0:
		return Weekly
	case changesPerDay > 0.0:
		return Monthly
	default:
		return Never
	}
}

// maxTime stands in for "never reschedule": the maximum representable time.
var maxTime = time.Unix(1<<63-62135596801, 999999999)

// ScheduledCrawl is one entry in the scheduler's priority queue.
type ScheduledCrawl struct {
	URL            string
	Priority       uint8 // 0-255, higher = more important
	NextCrawlAt    time.Time
	LastCrawledAt  time.Time // zero value means never crawled
	Frequency      Frequency
	FreshnessScore float64

	index int // heap bookkeeping
}

// NewScheduledCrawl returns a task due immediately, with freshness 0.
func NewScheduledCrawl(url string, frequency Frequency, priority uint8) *ScheduledCrawl {
	return &ScheduledCrawl{
		URL:         url,
		Priority:    priority,
		NextCrawlAt: time.Now(),
		Frequency:   frequency,
	}
}

// IsDue reports whether the task's next-crawl time has arrived.
func (s *ScheduledCrawl) IsDue() bool {
	return !time.Now().Before(s.NextCrawlAt)
}

// MarkCrawled advances NextCrawlAt by the frequency duration (or to maxTime
// for Never) and resets freshness to 1.0.
func (s *ScheduledCrawl) MarkCrawled() {
	now := time.Now()
	s.LastCrawledAt = now
	if d, ok := s.Frequency.Duration(); ok {
		s.NextCrawlAt = now.Add(d)
	} else {
		s.NextCrawlAt = maxTime
	}
	s.FreshnessScore = 1.0
}

// SchedulingScore combines priority, freshness, and overdue time into a
// single score used to order the priority queue.
func (s *ScheduledCrawl) SchedulingScore() int64 {
	score := int64(s.Priority) * 100
	score += int64((1.0 - s.FreshnessScore) * 50.0)

	now := time.Now()
	if now.After(s.NextCrawlAt) {
		overdueHours := int64(now.Sub(s.NextCrawlAt).Hours())
		if overdueHours > 1000 {
			overdueHours = 1000
		}
		score += overdueHours
	}
	return score
}

// UpdateFreshness recomputes FreshnessScore from elapsed time since the last
// crawl as exp(-elapsed/interval), so it falls to 1/e (about 0.368) after
// one frequency interval and keeps decaying toward 0.
func (s *ScheduledCrawl) UpdateFreshness() {
	if s.LastCrawledAt.IsZero() {
		return
	}
	d, ok := s.Frequency.Duration()
	if !ok || d <= 0 {
		return
	}
	elapsed := time.Since(s.LastCrawledAt).Seconds()
	decay := elapsed / d.Seconds()
	freshness := math.Exp(-decay)
	if freshness > 1.0 {
		freshness = 1.0
	}
	if freshness < 0.0 {
		freshness = 0.0
	}
	s.FreshnessScore = freshness
}

// taskHeap is a max-heap on SchedulingScore.
type taskHeap []*ScheduledCrawl

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	return h[i].SchedulingScore() > h[j].SchedulingScore()
}
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *taskHeap) Push(x any) {
	t := x.(*ScheduledCrawl)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler is a thread-safe priority queue of recurring crawl tasks.
type Scheduler struct {
	log   zerolog.Logger
	mu    sync.Mutex
	queue taskHeap
}

// New returns an empty Scheduler.
func New(log zerolog.Logger) *Scheduler {
	s := &Scheduler{log: log}
	heap.Init(&s.queue)
	return s
}

// Schedule enqueues a new task for url, due immediately.
func (s *Scheduler) Schedule(url string, frequency Frequency, priority uint8) {
	task := NewScheduledCrawl(url, frequency, priority)
	s.ScheduleTask(task)
}

// ScheduleTask enqueues an already-constructed task.
func (s *Scheduler) ScheduleTask(task *ScheduledCrawl) {
	s.mu.Lock()
	defer s.mu.Unlock()
	heap.Push(&s.queue, task)
	s.log.Debug().Str("url", task.URL).Uint8("priority", task.Priority).Msg("scheduled crawl task")
}

// PopDue recomputes freshness for every queued task, then pops and returns
// the highest-scored task if it is due; returns nil otherwise.
//
// This recomputes freshness for the whole queue on every call, which is
// O(N); acceptable at the scale this scheduler targets, not optimized away.
func (s *Scheduler) PopDue() *ScheduledCrawl {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.queue {
		t.UpdateFreshness()
	}
	heap.Init(&s.queue)

	if len(s.queue) == 0 {
		return nil
	}
	top := s.queue[0]
	if !top.IsDue() {
		return nil
	}
	return heap.Pop(&s.queue).(*ScheduledCrawl)
}

// PopDueBatch pops up to count due tasks.
func (s *Scheduler) PopDueBatch(count int) []*ScheduledCrawl {
	var out []*ScheduledCrawl
	for i := 0; i < count; i++ {
		t := s.PopDue()
		if t == nil {
			break
		}
		out = append(out, t)
	}
	return out
}

// Reschedule marks task crawled and re-enqueues it, unless its frequency is
// Never.
func (s *Scheduler) Reschedule(task *ScheduledCrawl) {
	task.MarkCrawled()
	if task.Frequency == Never {
		return
	}
	s.mu.Lock()
	heap.Push(&s.queue, task)
	s.mu.Unlock()
	s.log.Info().Str("url", task.URL).Time("next_crawl_at", task.NextCrawlAt).Msg("rescheduled")
}

// Len returns the number of queued tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// IsEmpty reports whether the scheduler has no queued tasks.
func (s *Scheduler) IsEmpty() bool { return s.Len() == 0 }

// All returns every queued task, highest scheduling score first, without
// removing them.
func (s *Scheduler) All() []*ScheduledCrawl {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*ScheduledCrawl, len(s.queue))
	copy(out, s.queue)
	// sort by score descending without disturbing the live heap
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].SchedulingScore() > out[j-1].SchedulingScore(); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Clear removes every queued task.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = taskHeap{}
	s.log.Info().Msg("cleared all scheduled tasks")
}

// Stats summarizes the scheduler's queue.
type Stats struct {
	TotalTasks       int
	DueTasks         int
	OverdueTasks     int
	AverageFreshness float64
}

// Stats returns a snapshot of the scheduler's queue.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var due, overdue int
	var freshnessSum float64
	for _, t := range s.queue {
		if t.IsDue() {
			due++
		}
		if now.After(t.NextCrawlAt) {
			overdue++
		}
		freshnessSum += t.FreshnessScore
	}

	var avg float64
	if len(s.queue) > 0 {
		avg = freshnessSum / float64(len(s.queue))
	}

	return Stats{
		TotalTasks:       len(s.queue),
		DueTasks:         due,
		OverdueTasks:     overdue,
		AverageFreshness: avg,
	}
}
