// Package crawler composes the URL processor, content filter, rate
// limiter, politeness manager, retry policy, robots manager, circuit
// breaker, header manager, and extractors into a single polite,
// fault-tolerant crawl operation.
package crawler

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/EngineSearch/crawler/internal/circuit"
	"github.com/EngineSearch/crawler/internal/config"
	"github.com/EngineSearch/crawler/internal/extract"
	"github.com/EngineSearch/crawler/internal/filter"
	"github.com/EngineSearch/crawler/internal/headers"
	"github.com/EngineSearch/crawler/internal/model"
	"github.com/EngineSearch/crawler/internal/politeness"
	"github.com/EngineSearch/crawler/internal/ratelimit"
	"github.com/EngineSearch/crawler/internal/resource"
	"github.com/EngineSearch/crawler/internal/retry"
	"github.com/EngineSearch/crawler/internal/robots"
	"github.com/EngineSearch/crawler/internal/scheduler"
	"github.com/EngineSearch/crawler/internal/urlnorm"
)

const maxContentLength = 50000

// Crawler coordinates one or more seed URLs through the full politeness and
// fault-tolerance pipeline, yielding crawled pages and extracted images.
type Crawler struct {
	log zerolog.Logger

	urlProc     *urlnorm.Processor
	filter      *filter.Filter
	rateLimiter *ratelimit.Limiter
	politeness  *politeness.Manager
	retryPolicy *retry.Policy
	robots      *robots.Manager
	circuit     *circuit.Breaker
	headers     *headers.Manager
	scheduler   *scheduler.Scheduler
	resourceMon *resource.Monitor

	httpClient    *http.Client
	maxDepth      int
	maxConcurrent int
}

// New builds a Crawler from resolved configuration, wiring every component
// with the same logger and consistent defaults.
func New(log zerolog.Logger, cfg config.CrawlConfig) *Crawler {
	return NewWithResourceConfig(log, cfg, config.ResourceConfig{
		MemoryHeadroomPct: 50,
		CPUHighWater:      0.9,
		MaxParallel:       32,
		MinFetchKB:        256,
	})
}

// NewWithResourceConfig builds a Crawler the same way New does, additionally
// wiring a resource.Monitor so that in-flight parallelism per seed backs off
// under memory or CPU pressure rather than only being capped statically.
func NewWithResourceConfig(log zerolog.Logger, cfg config.CrawlConfig, resCfg config.ResourceConfig) *Crawler {
	minDelay := time.Duration(cfg.MinDelayMs) * time.Millisecond
	hm := headers.WithConfig(log, cfg.UserAgent, cfg.ContactEmail, cfg.BotURL, cfg.AcceptLanguage)

	retryCfg := retry.DefaultConfig()
	if cfg.MaxRetries >= 0 {
		retryCfg.MaxRetries = uint(cfg.MaxRetries)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	monCfg := resource.Config{
		MemoryHeadroomPct: resCfg.MemoryHeadroomPct,
		CPUHighWater:      resCfg.CPUHighWater,
		MaxParallel:       resCfg.MaxParallel,
		MinFetchBytes:     int64(resCfg.MinFetchKB) * 1024,
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &Crawler{
		log:         log,
		urlProc:     urlnorm.New(),
		filter:      filter.New(log),
		rateLimiter: ratelimit.New(log, cfg.RequestsPerSecond, minDelay),
		politeness:  politeness.New(log, minDelay, cfg.MaxRetries),
		retryPolicy: newRetryPolicy(log, retryCfg),
		robots:      robots.New(log, hm.UserAgentString()),
		circuit:     circuit.NewDefault(log),
		headers:     hm,
		scheduler:   scheduler.New(log),
		resourceMon: resource.New(log, monCfg),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DisableCompression:  true, // we negotiate encodings ourselves via the header manager
				MaxIdleConnsPerHost: 10,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
			},
		},
		maxDepth:      cfg.MaxDepth,
		maxConcurrent: maxConcurrent,
	}
}

// newRetryPolicy builds a retry.Policy with outcome tracking enabled, so the
// fetch retry behavior is observable through Crawler.Stats().
func newRetryPolicy(log zerolog.Logger, cfg retry.Config) *retry.Policy {
	p := retry.WithConfig(log, cfg)
	p.EnableStats()
	return p
}

// Start launches the background resource monitor so effectiveConcurrency
// reflects live memory/CPU pressure rather than only the reading taken at
// construction time. Calling Start is optional: without it the construction
// reading is used throughout, and Close is then a no-op.
func (c *Crawler) Start() {
	c.resourceMon.Start(5 * time.Second)
}

// Close stops the background resource monitor.
func (c *Crawler) Close() {
	c.resourceMon.Stop()
}

// Filter exposes the content filter for caller-side configuration (domain
// whitelists/blacklists, include/exclude patterns, content-type and size
// limits) before a crawl begins.
func (c *Crawler) Filter() *filter.Filter { return c.filter }

// Scheduler exposes the recrawl priority queue for callers that schedule
// recurring crawls rather than one-shot seed lists.
func (c *Crawler) Scheduler() *scheduler.Scheduler { return c.scheduler }

// Stats is a read-only snapshot of the rate limiter, politeness manager,
// circuit breaker, content filter, scheduler, and retry policy metrics. The
// robots cache and resource monitor readings are not included.
type Stats struct {
	RateLimiter ratelimit.Stats
	Politeness  politeness.Stats
	Circuit     circuit.Stats
	Filter      filter.Stats
	Scheduler   scheduler.Stats
	Retry       retry.Stats
}

// Stats returns a snapshot across the components listed on Stats.
func (c *Crawler) Stats() Stats {
	return Stats{
		RateLimiter: c.rateLimiter.Stats(),
		Politeness:  c.politeness.Stats(),
		Circuit:     c.circuit.Stats(),
		Filter:      c.filter.Stats(),
		Scheduler:   c.scheduler.Stats(),
		Retry:       c.retryPolicy.Stats(),
	}
}

// effectiveConcurrency bounds in-flight parallelism per seed to the smaller
// of the configured max_concurrent and the fetch permits the resource
// governor currently grants, given the response sizes it has seen so far.
func (c *Crawler) effectiveConcurrency() int {
	n := c.maxConcurrent
	if permits := c.resourceMon.Permits(); permits < n {
		n = permits
	}
	if n < 1 {
		n = 1
	}
	return n
}

// CrawlURLs crawls each seed URL up to the configured max depth, yielding
// deduplicated crawled pages and every image extracted along the way.
func (c *Crawler) CrawlURLs(ctx context.Context, urls []string) ([]model.CrawledPage, []model.ExtractedImage, error) {
	var pages []model.CrawledPage
	var images []model.ExtractedImage
	seen := make(map[string]bool)

	for _, seed := range urls {
		if err := ctx.Err(); err != nil {
			return pages, images, err
		}
		p, im := c.crawlSeed(ctx, seed, seen)
		pages = append(pages, p...)
		images = append(images, im...)
	}

	return pages, images, nil
}

// crawlSeed crawls one seed through up to maxDepth levels of links. Within
// a level, up to effectiveConcurrency URLs are fetched in parallel; the
// next level is not started until the current one finishes, so a link
// discovered at depth d is never fetched before every depth d-1 fetch has
// been attempted. The per-origin rate limiter and politeness manager still
// serialize same-origin requests however many URLs of a level run
// concurrently.
func (c *Crawler) crawlSeed(ctx context.Context, seed string, seen map[string]bool) ([]model.CrawledPage, []model.ExtractedImage) {
	var pages []model.CrawledPage
	var images []model.ExtractedImage
	var mu sync.Mutex // guards pages, images, and seen across this seed's goroutines

	level := []string{seed}

	for depth := 0; len(level) > 0; depth++ {
		concurrency := c.effectiveConcurrency()
		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup
		var nextMu sync.Mutex
		var next []string

		for _, rawURL := range level {
			mu.Lock()
			normalized, err := c.urlProc.Normalize(rawURL)
			if err != nil {
				mu.Unlock()
				c.log.Debug().Str("url", rawURL).Err(err).Msg("skipping unparseable url")
				continue
			}
			if seen[normalized] {
				mu.Unlock()
				continue
			}
			seen[normalized] = true
			mu.Unlock()

			if ctx.Err() != nil {
				break
			}

			sem <- struct{}{}
			wg.Add(1)
			go func(normalized string) {
				defer wg.Done()
				defer func() { <-sem }()

				page, imgs, links, ok := c.crawlOne(ctx, normalized)
				if !ok {
					return
				}
				mu.Lock()
				if page != nil {
					pages = append(pages, *page)
				}
				images = append(images, imgs...)
				mu.Unlock()

				if depth < c.maxDepth {
					nextMu.Lock()
					next = append(next, links...)
					nextMu.Unlock()
				}
			}(normalized)
		}

		wg.Wait()
		level = next
	}

	return pages, images
}

// crawlOne runs the full politeness/fault-tolerance pipeline for a single
// normalized URL: circuit breaker, content filter, robots, rate limiting,
// fetch, and extraction. ok is false when the URL was skipped or the fetch
// failed; links is populated only on a successful fetch.
func (c *Crawler) crawlOne(ctx context.Context, normalized string) (page *model.CrawledPage, images []model.ExtractedImage, links []string, ok bool) {
	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Host == "" {
		return nil, nil, nil, false
	}
	host := parsed.Host

	if !c.circuit.CanProceed(host) {
		c.log.Debug().Str("host", host).Msg("circuit open, skipping")
		return nil, nil, nil, false
	}
	if !c.filter.IsURLAllowed(normalized) {
		return nil, nil, nil, false
	}

	allowed, err := c.robots.IsAllowed(ctx, normalized)
	if err != nil {
		c.log.Warn().Str("url", normalized).Err(err).Msg("robots check failed, proceeding permissively")
	} else if !allowed {
		return nil, nil, nil, false
	}
	if delay := c.robots.GetCrawlDelay(ctx, host); delay != nil {
		c.politeness.SetCrawlDelay(host, time.Duration(*delay*float64(time.Second)))
	}

	if err := c.rateLimiter.WaitFor(ctx, normalized); err != nil {
		return nil, nil, nil, false
	}
	if err := c.politeness.WaitBeforeRequest(normalized); err != nil {
		return nil, nil, nil, false
	}

	body, fetchErr := c.fetch(ctx, normalized)
	if fetchErr != nil {
		if errors.Is(fetchErr, errContentFiltered) {
			// the origin answered fine, the response just isn't for us
			c.circuit.RecordSuccess(host)
			c.log.Debug().Str("url", normalized).Err(fetchErr).Msg("response filtered")
			return nil, nil, nil, false
		}
		c.circuit.RecordFailure(host)
		c.log.Warn().Str("url", normalized).Err(fetchErr).Msg("fetch failed")
		return nil, nil, nil, false
	}
	c.circuit.RecordSuccess(host)
	c.resourceMon.ObserveFetch(int64(len(body)))

	if processed, found := extract.ProcessPage(body, normalized, maxContentLength); found {
		page = &model.CrawledPage{
			ID:          uuid.NewString(),
			URL:         normalized,
			Title:       processed.Title,
			Content:     processed.Content,
			Description: processed.Description,
			Keywords:    processed.Keywords,
			CrawledAt:   time.Now().UTC(),
			WordCount:   len(strings.Fields(processed.Content)),
			Domain:      parsed.Hostname(),
			FaviconURL:  processed.FaviconURL,
		}

		if pageImages, err := extract.ExtractImages(body, normalized, processed.Title, processed.Content); err == nil {
			images = pageImages
		}
	}

	links = extractLinks(body, normalized)
	return page, images, links, true
}

// errContentFiltered marks a response rejected by the content filter
// (disallowed content type or oversized body) rather than a failed fetch.
var errContentFiltered = errors.New("content filtered")

func (c *Crawler) fetch(ctx context.Context, targetURL string) (string, error) {
	var bodyText string

	resp, err := c.retryPolicy.ExecuteHTTP(ctx, targetURL, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range c.headers.BuildHeaders("") {
			req.Header.Set(k, v)
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetching %s: status %d", targetURL, resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !c.filter.IsContentTypeAllowed(ct) {
		return "", fmt.Errorf("%w: content type %q", errContentFiltered, ct)
	}
	if resp.ContentLength > 0 && !c.filter.IsFileSizeAllowed(resp.ContentLength) {
		return "", fmt.Errorf("%w: declared size %d", errContentFiltered, resp.ContentLength)
	}

	reader, err := decodeBody(resp)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if !c.filter.IsFileSizeAllowed(int64(len(data))) {
		return "", fmt.Errorf("%w: body size %d", errContentFiltered, len(data))
	}
	bodyText = string(data)
	return bodyText, nil
}

func decodeBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

func extractLinks(html, baseURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		abs, err := base.Parse(href)
		if err != nil {
			return
		}
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		links = append(links, abs.String())
	})
	return links
}
