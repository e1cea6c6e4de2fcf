package filter

import (
	"testing"

	"github.com/rs/zerolog"
)

func newTestFilter() *Filter {
	return New(zerolog.Nop())
}

func TestDefaultContentTypes(t *testing.T) {
	f := newTestFilter()

	if !f.IsContentTypeAllowed("text/html") {
		t.Error("expected text/html allowed")
	}
	if !f.IsContentTypeAllowed("text/html; charset=utf-8") {
		t.Error("expected text/html with charset allowed")
	}
	if !f.IsContentTypeAllowed("application/xml") {
		t.Error("expected application/xml allowed")
	}
	if f.IsContentTypeAllowed("application/pdf") {
		t.Error("expected application/pdf disallowed")
	}
	if f.IsContentTypeAllowed("image/jpeg") {
		t.Error("expected image/jpeg disallowed")
	}
}

func TestFileSizeLimit(t *testing.T) {
	f := newTestFilter()
	f.SetMaxFileSize(1024)

	if !f.IsFileSizeAllowed(512) {
		t.Error("expected 512 bytes allowed")
	}
	if !f.IsFileSizeAllowed(1024) {
		t.Error("expected exactly 1024 bytes allowed")
	}
	if f.IsFileSizeAllowed(1025) {
		t.Error("expected 1025 bytes disallowed")
	}
}

func TestUnlimitedFileSize(t *testing.T) {
	f := newTestFilter()
	f.SetMaxFileSize(0)

	if !f.IsFileSizeAllowed(100 * 1024 * 1024) {
		t.Error("expected unlimited size to allow 100MB")
	}
}

func TestURLIncludePatterns(t *testing.T) {
	f := newTestFilter()
	if err := f.AddURLIncludePattern(`^https://example\.com/blog/.*`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.IsURLAllowed("https://example.com/blog/post1") {
		t.Error("expected blog post allowed")
	}
	if f.IsURLAllowed("https://example.com/about") {
		t.Error("expected non-blog path disallowed")
	}
	if f.IsURLAllowed("https://other.com/blog/post1") {
		t.Error("expected other domain disallowed")
	}
}

func TestURLExcludePatterns(t *testing.T) {
	f := newTestFilter()
	if err := f.AddURLExcludePattern(`.*\.pdf$`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.AddURLExcludePattern(`.*/admin/.*`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.IsURLAllowed("https://example.com/page") {
		t.Error("expected plain page allowed")
	}
	if f.IsURLAllowed("https://example.com/document.pdf") {
		t.Error("expected pdf disallowed")
	}
	if f.IsURLAllowed("https://example.com/admin/panel") {
		t.Error("expected admin path disallowed")
	}
}

func TestURLPatternsPrecedence(t *testing.T) {
	f := newTestFilter()
	if err := f.AddURLIncludePattern(`^https://example\.com/.*`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.AddURLExcludePattern(`.*/private/.*`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.IsURLAllowed("https://example.com/public/page") {
		t.Error("expected public page allowed")
	}
	if f.IsURLAllowed("https://example.com/private/data") {
		t.Error("expected exclude to win over include")
	}
}

func TestDomainWhitelist(t *testing.T) {
	f := newTestFilter()
	f.AddDomainWhitelist("example.com")
	f.AddDomainWhitelist("trusted.org")

	if !f.IsURLAllowed("https://example.com/page") {
		t.Error("expected whitelisted domain allowed")
	}
	if !f.IsURLAllowed("https://trusted.org/page") {
		t.Error("expected second whitelisted domain allowed")
	}
	if f.IsURLAllowed("https://other.com/page") {
		t.Error("expected non-whitelisted domain disallowed")
	}
}

func TestDomainBlacklist(t *testing.T) {
	f := newTestFilter()
	f.AddDomainBlacklist("spam.com")

	if !f.IsURLAllowed("https://example.com/page") {
		t.Error("expected non-blacklisted domain allowed")
	}
	if f.IsURLAllowed("https://spam.com/page") {
		t.Error("expected blacklisted domain disallowed")
	}
}

func TestDomainBlacklistPrecedence(t *testing.T) {
	f := newTestFilter()
	f.AddDomainWhitelist("example.com")
	f.AddDomainBlacklist("example.com")

	if f.IsURLAllowed("https://example.com/page") {
		t.Error("expected blacklist to win over whitelist")
	}
}

func TestStats(t *testing.T) {
	f := newTestFilter()
	_ = f.AddURLIncludePattern(`^https://.*`)
	_ = f.AddURLExcludePattern(`.*\.pdf$`)
	f.AddDomainWhitelist("example.com")
	f.AddDomainBlacklist("spam.com")

	stats := f.Stats()
	if stats.AllowedContentTypes != 4 {
		t.Errorf("AllowedContentTypes = %d, want 4", stats.AllowedContentTypes)
	}
	if stats.URLIncludePatterns != 1 || stats.URLExcludePatterns != 1 {
		t.Errorf("unexpected pattern counts: %+v", stats)
	}
	if stats.DomainWhitelistCount != 1 || stats.DomainBlacklistCount != 1 {
		t.Errorf("unexpected domain counts: %+v", stats)
	}
}

func TestInvalidURL(t *testing.T) {
	f := newTestFilter()
	if f.IsURLAllowed("://not a url") {
		t.Error("expected malformed URL disallowed")
	}
}
