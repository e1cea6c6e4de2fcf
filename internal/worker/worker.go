// Package worker drains crawl jobs from the durable queue and drives them
// through the Crawler Core one seed URL at a time, handing extracted pages
// and images to the configured indexes.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/EngineSearch/crawler/internal/crawler"
	"github.com/EngineSearch/crawler/internal/model"
)

// JobQueue is the durable queue the worker drains. The in-repository
// implementation is internal/queue; a deployment may substitute any store
// offering the same operations.
type JobQueue interface {
	Enqueue(job *model.CrawlJob) error
	Dequeue(ctx context.Context) (*model.CrawlJob, bool)
	Update(job *model.CrawlJob)
	Complete(jobID string, pagesCrawled, pagesIndexed int)
	Fail(jobID, errMsg string)
	Get(jobID string) (*model.CrawlJob, bool)
}

// TextIndex receives crawled pages and images for full-text search,
// idempotent by each record's id.
type TextIndex interface {
	IndexDocuments(ctx context.Context, pages []model.CrawledPage) error
	IndexImages(ctx context.Context, images []model.ExtractedImage) error
}

// VectorIndex receives crawled pages and images for embedding-based
// retrieval, idempotent by each record's id.
type VectorIndex interface {
	IndexPage(ctx context.Context, id, url, title, content string) error
	IndexImage(ctx context.Context, id, imageURL, sourceURL, figcaption, altText, title, pageTitle, domain string) error
}

const dequeuePollInterval = 5 * time.Second

var retryBackoffs = []time.Duration{60 * time.Second, 300 * time.Second, 1800 * time.Second}

// retryItem is a job that failed transiently and is waiting to be retried.
type retryItem struct {
	job       *model.CrawlJob
	attempt   int
	readyAt   time.Time
}

// Worker dequeues CrawlJob records and runs them to completion, with a
// separate retry queue for jobs that failed in a way worth retrying.
type Worker struct {
	log zerolog.Logger

	jobs    JobQueue
	crawler *crawler.Crawler
	text    TextIndex
	vector  VectorIndex

	retryMu    chan struct{} // 1-buffered mutex-as-channel guarding retryQueue
	retryQueue []retryItem
}

// New builds a Worker over jobs, driving crawls with c and indexing results
// into text and vector.
func New(log zerolog.Logger, jobs JobQueue, c *crawler.Crawler, text TextIndex, vector VectorIndex) *Worker {
	w := &Worker{
		log:     log,
		jobs:    jobs,
		crawler: c,
		text:    text,
		vector:  vector,
		retryMu: make(chan struct{}, 1),
	}
	w.retryMu <- struct{}{}
	return w
}

// Run loops forever pulling jobs from the queue until ctx is cancelled.
// Empty dequeues sleep for dequeuePollInterval before retrying.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, ok := w.jobs.Dequeue(ctx)
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeuePollInterval):
			}
			continue
		}

		w.runJob(ctx, job)
	}
}

func (w *Worker) runJob(ctx context.Context, job *model.CrawlJob) {
	now := time.Now()
	job.Status = model.JobProcessing
	job.StartedAt = &now
	w.jobs.Update(job)

	var pagesCrawled, pagesIndexed int

	for _, seed := range job.SeedURLs {
		pages, images, err := w.crawler.CrawlURLs(ctx, []string{seed})
		if err != nil {
			w.log.Error().Str("job_id", job.ID).Str("seed", seed).Err(err).Msg("crawl failed")
			w.jobs.Fail(job.ID, err.Error())
			w.enqueueRetry(job, 1)
			return
		}

		// pagesIndexed tracks only successful submission to the text index;
		// vector index failures are logged but never affect the counters.
		indexedThisSeed := 0

		if len(pages) > 0 {
			if err := w.text.IndexDocuments(ctx, pages); err != nil {
				w.log.Warn().Err(err).Msg("text index failed for pages")
			} else {
				indexedThisSeed += len(pages)
			}
			for _, p := range pages {
				if err := w.vector.IndexPage(ctx, p.ID, p.URL, p.Title, p.Content); err != nil {
					w.log.Warn().Err(err).Str("page_id", p.ID).Msg("vector index failed for page")
				}
			}
		}
		if len(images) > 0 {
			if err := w.text.IndexImages(ctx, images); err != nil {
				w.log.Warn().Err(err).Msg("text index failed for images")
			} else {
				indexedThisSeed += len(images)
			}
			for _, img := range images {
				if err := w.vector.IndexImage(ctx, img.ID, img.ImageURL, img.SourceURL, img.Figcaption, img.AltText, img.Title, img.PageTitle, img.Domain); err != nil {
					w.log.Warn().Err(err).Str("image_id", img.ID).Msg("vector index failed for image")
				}
			}
		}

		pagesCrawled += len(pages)
		pagesIndexed += indexedThisSeed

		job.PagesCrawled = pagesCrawled
		job.PagesIndexed = pagesIndexed
		w.jobs.Update(job)
	}

	w.jobs.Complete(job.ID, pagesCrawled, pagesIndexed)
	w.log.Info().Str("job_id", job.ID).Int("pages_crawled", pagesCrawled).Int("pages_indexed", pagesIndexed).Msg("job completed")
}

func (w *Worker) enqueueRetry(job *model.CrawlJob, attempt int) {
	if attempt > len(retryBackoffs) {
		w.log.Warn().Str("job_id", job.ID).Int("attempt", attempt).Msg("dropping job after exhausting retries")
		return
	}
	delay := retryBackoffs[attempt-1]

	<-w.retryMu
	w.retryQueue = append(w.retryQueue, retryItem{job: job, attempt: attempt, readyAt: time.Now().Add(delay)})
	w.retryMu <- struct{}{}
}

// RunRetryLoop is the second worker fiber: it periodically re-submits jobs
// from the retry queue once their backoff has elapsed, until ctx is
// cancelled.
func (w *Worker) RunRetryLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainReadyRetries(ctx)
		}
	}
}

func (w *Worker) drainReadyRetries(ctx context.Context) {
	<-w.retryMu
	now := time.Now()
	var ready []retryItem
	var remaining []retryItem
	for _, item := range w.retryQueue {
		if now.After(item.readyAt) {
			ready = append(ready, item)
		} else {
			remaining = append(remaining, item)
		}
	}
	w.retryQueue = remaining
	w.retryMu <- struct{}{}

	for _, item := range ready {
		w.log.Info().Str("job_id", item.job.ID).Int("attempt", item.attempt).Msg("retrying job")
		if err := w.jobs.Enqueue(item.job); err != nil {
			w.enqueueRetry(item.job, item.attempt+1)
		}
	}
}
