package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/EngineSearch/crawler/internal/config"
)

func testConfig() config.CrawlConfig {
	return config.CrawlConfig{
		MaxDepth:          1,
		MaxConcurrent:     2,
		RequestsPerSecond: 1000,
		MinDelayMs:        0,
		MaxRetries:        1,
		TimeoutSeconds:    5,
		UserAgent:         "TestBot/1.0",
		AcceptLanguage:    "en-US,en;q=0.9",
	}
}

func TestCrawlURLsSinglePage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Test Page</title></head><body>
<article>` + strings.Repeat("This is real article content. ", 10) + `</article>
</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(zerolog.Nop(), testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pages, _, err := c.CrawlURLs(ctx, []string{server.URL + "/"})
	if err != nil {
		t.Fatalf("CrawlURLs error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("len(pages) = %d, want 1", len(pages))
	}
	if pages[0].Title != "Test Page" {
		t.Errorf("Title = %q", pages[0].Title)
	}
}

func TestCrawlURLsRespectsRobotsDisallow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>should not be fetched</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(zerolog.Nop(), testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pages, _, err := c.CrawlURLs(ctx, []string{server.URL + "/"})
	if err != nil {
		t.Fatalf("CrawlURLs error: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("len(pages) = %d, want 0 (disallowed by robots.txt)", len(pages))
	}
}

func TestCrawlURLsSkipsDisallowedContentType(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 not html at all, definitely long enough to pass the length check"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(zerolog.Nop(), testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pages, _, err := c.CrawlURLs(ctx, []string{server.URL + "/"})
	if err != nil {
		t.Fatalf("CrawlURLs error: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("len(pages) = %d, want 0 (content type not allowed)", len(pages))
	}

	// a filtered response is not a failure, so the circuit stays healthy
	if stats := c.Stats(); stats.Circuit.OpenCircuits != 0 {
		t.Errorf("OpenCircuits = %d, want 0", stats.Circuit.OpenCircuits)
	}
}

func TestStatsReturnsSnapshot(t *testing.T) {
	c := New(zerolog.Nop(), testConfig())
	stats := c.Stats()
	if stats.Scheduler.TotalTasks != 0 {
		t.Errorf("TotalTasks = %d, want 0 on a fresh crawler", stats.Scheduler.TotalTasks)
	}
}
