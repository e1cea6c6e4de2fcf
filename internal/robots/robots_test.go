package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseDisallowAndAllow(t *testing.T) {
	content := `
User-agent: *
Disallow: /admin/
Disallow: /private/
Allow: /public/

Crawl-delay: 1

Sitemap: https://example.com/sitemap.xml
`
	rules := parse(content, "TestBot")

	if !rules.IsPathAllowed("/public/page") {
		t.Error("expected /public/page allowed")
	}
	if !rules.IsPathAllowed("/index.html") {
		t.Error("expected /index.html allowed")
	}
	if rules.IsPathAllowed("/admin/panel") {
		t.Error("expected /admin/panel disallowed")
	}
	if rules.IsPathAllowed("/private/data") {
		t.Error("expected /private/data disallowed")
	}
}

func TestParseCrawlDelay(t *testing.T) {
	content := "User-agent: *\nCrawl-delay: 2.5\n"
	rules := parse(content, "TestBot")
	if rules.CrawlDelay == nil || *rules.CrawlDelay != 2.5 {
		t.Errorf("CrawlDelay = %v, want 2.5", rules.CrawlDelay)
	}
}

func TestParseSitemaps(t *testing.T) {
	content := "Sitemap: https://example.com/sitemap.xml\nSitemap: https://example.com/sitemap2.xml\n"
	rules := parse(content, "TestBot")
	if len(rules.Sitemaps) != 2 {
		t.Fatalf("len(Sitemaps) = %d, want 2", len(rules.Sitemaps))
	}
}

func TestParseUserAgentMatching(t *testing.T) {
	content := `
User-agent: GoogleBot
Disallow: /private/

User-agent: *
Disallow: /admin/
`
	googleRules := parse(content, "GoogleBot")
	if googleRules.IsPathAllowed("/private/test") {
		t.Error("expected /private/test disallowed for GoogleBot")
	}
	if !googleRules.IsPathAllowed("/admin/panel") {
		t.Error("expected /admin/panel allowed for GoogleBot (only * block disallows it)")
	}

	genericRules := parse(content, "TestBot")
	if !genericRules.IsPathAllowed("/private/test") {
		t.Error("expected /private/test allowed for generic bot")
	}
	if genericRules.IsPathAllowed("/admin/panel") {
		t.Error("expected /admin/panel disallowed for generic bot via * block")
	}
}

func TestPermissiveRules(t *testing.T) {
	rules := permissiveRules()
	if !rules.IsPathAllowed("/anything") {
		t.Error("expected permissive rules to allow any path")
	}
	if rules.CrawlDelay != nil {
		t.Error("expected permissive rules to have no crawl delay")
	}
}

func TestManagerIsAllowedFetchesAndCaches(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("User-agent: *\nDisallow: /admin/\n"))
	}))
	defer srv.Close()

	m := New(zerolog.Nop(), "TestBot/1.0")
	host := strings.TrimPrefix(srv.URL, "http://")

	allowed, err := m.IsAllowed(context.Background(), srv.URL+"/admin/panel")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("expected /admin/panel disallowed")
	}

	allowed, err = m.IsAllowed(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("expected /page allowed")
	}

	if requests != 1 {
		t.Errorf("expected robots.txt fetched once (cached), got %d requests", requests)
	}
	if m.Stats().CachedDomains != 1 {
		t.Errorf("expected 1 cached domain for host %s", host)
	}
}

func TestManagerPermissiveOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m := New(zerolog.Nop(), "TestBot/1.0")
	allowed, err := m.IsAllowed(context.Background(), srv.URL+"/anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("expected permissive fallback to allow on 404")
	}
}

func TestClearCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /x/\n"))
	}))
	defer srv.Close()

	m := New(zerolog.Nop(), "TestBot/1.0")
	_, _ = m.IsAllowed(context.Background(), srv.URL+"/x/y")

	host := strings.TrimPrefix(srv.URL, "http://")
	m.ClearCache(host)
	if m.Stats().CachedDomains != 0 {
		t.Error("expected cache cleared")
	}
}
