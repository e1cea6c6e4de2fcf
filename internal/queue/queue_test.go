package queue

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/EngineSearch/crawler/internal/model"
)

func testJob(id string) *model.CrawlJob {
	return &model.CrawlJob{
		ID:        id,
		SeedURLs:  []string{"https://example.com"},
		MaxDepth:  2,
		Status:    model.JobPending,
		CreatedAt: time.Now(),
	}
}

func TestEnqueueDequeue(t *testing.T) {
	q := New(zerolog.Nop(), 10)
	if err := q.Enqueue(testJob("job-1")); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	job, ok := q.Dequeue(ctx)
	if !ok || job.ID != "job-1" {
		t.Fatalf("Dequeue() = (%v, %v), want job-1", job, ok)
	}
}

func TestDequeueBlocksUntilCancelled(t *testing.T) {
	q := New(zerolog.Nop(), 10)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, ok := q.Dequeue(ctx)
	if ok {
		t.Error("expected Dequeue to time out on empty queue")
	}
}

func TestCompleteUpdatesRecord(t *testing.T) {
	q := New(zerolog.Nop(), 10)
	q.Enqueue(testJob("job-2"))
	q.Complete("job-2", 5, 4)

	job, ok := q.Get("job-2")
	if !ok {
		t.Fatal("expected job-2 to exist")
	}
	if job.Status != model.JobCompleted || job.PagesCrawled != 5 || job.PagesIndexed != 4 {
		t.Errorf("job = %+v", job)
	}
}

func TestFailUpdatesRecord(t *testing.T) {
	q := New(zerolog.Nop(), 10)
	q.Enqueue(testJob("job-3"))
	q.Fail("job-3", "boom")

	job, ok := q.Get("job-3")
	if !ok {
		t.Fatal("expected job-3 to exist")
	}
	if job.Status != model.JobFailed || job.Error != "boom" {
		t.Errorf("job = %+v", job)
	}
}

func TestGetUnknownJob(t *testing.T) {
	q := New(zerolog.Nop(), 10)
	if _, ok := q.Get("missing"); ok {
		t.Error("expected missing job to not be found")
	}
}

func TestEvictExpired(t *testing.T) {
	q := New(zerolog.Nop(), 10)
	q.ttl = time.Millisecond
	q.Enqueue(testJob("job-4"))
	time.Sleep(5 * time.Millisecond)

	if n := q.EvictExpired(); n != 1 {
		t.Errorf("EvictExpired() = %d, want 1", n)
	}
	if _, ok := q.Get("job-4"); ok {
		t.Error("expected job-4 to be evicted")
	}
}
