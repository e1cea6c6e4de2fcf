// Package model defines the data records exchanged between the crawler's
// components: crawled pages and images, and crawl jobs. Scheduled crawls
// are defined in the scheduler package.
package model

import "time"

// CrawledPage is the immutable result of processing a single fetched page.
type CrawledPage struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Description string    `json:"description,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	CrawledAt   time.Time `json:"crawled_at"`
	WordCount   int       `json:"word_count"`
	Domain      string    `json:"domain,omitempty"`
	FaviconURL  string    `json:"favicon_url,omitempty"`
}

// ExtractedImage is a single image record emitted while processing a page.
type ExtractedImage struct {
	ID          string    `json:"id"`
	ImageURL    string    `json:"image_url"`
	SourceURL   string    `json:"source_url"`
	AltText     string    `json:"alt_text,omitempty"`
	Title       string    `json:"title,omitempty"`
	Figcaption  string    `json:"figcaption,omitempty"`
	SrcsetURL   string    `json:"srcset_url,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	PageTitle   string    `json:"page_title"`
	PageContent string    `json:"page_content"`
	Domain      string    `json:"domain"`
	CrawledAt   time.Time `json:"crawled_at"`
	IsOGImage   bool      `json:"is_og_image"`
}

// JobStatus is the lifecycle state of a CrawlJob.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// CrawlJob is a unit of work consumed by the Worker: a set of seed URLs to
// crawl to a maximum depth, with counters updated as seeds complete.
type CrawlJob struct {
	ID            string     `json:"id"`
	SeedURLs      []string   `json:"seed_urls"`
	MaxDepth      int        `json:"max_depth"`
	Status        JobStatus  `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	PagesCrawled  int        `json:"pages_crawled"`
	PagesIndexed  int        `json:"pages_indexed"`
	Error         string     `json:"error,omitempty"`
}

// Clone returns a deep-enough copy for safe concurrent hand-off between the
// worker loop and a durable store implementation.
func (j *CrawlJob) Clone() *CrawlJob {
	cp := *j
	cp.SeedURLs = append([]string(nil), j.SeedURLs...)
	return &cp
}
