package extract

import (
	"strings"
	"testing"
)

func TestProcessPageBasic(t *testing.T) {
	html := `<html><head><title>Example Domain</title>
<meta name="description" content="An example page for testing.">
<meta name="keywords" content="example, testing, go">
<link rel="icon" href="/favicon.png">
</head><body>
<article>` + strings.Repeat("This is a long paragraph of article content. ", 10) + `</article>
</body></html>`

	page, ok := ProcessPage(html, "https://example.com/page", 10000)
	if !ok {
		t.Fatal("expected page to be accepted")
	}
	if page.Title != "Example Domain" {
		t.Errorf("Title = %q", page.Title)
	}
	if page.Description != "An example page for testing." {
		t.Errorf("Description = %q", page.Description)
	}
	if len(page.Keywords) != 3 || page.Keywords[1] != "testing" {
		t.Errorf("Keywords = %v", page.Keywords)
	}
	if page.FaviconURL != "https://example.com/favicon.png" {
		t.Errorf("FaviconURL = %q", page.FaviconURL)
	}
	if !strings.Contains(page.Content, "long paragraph") {
		t.Errorf("Content missing expected text: %q", page.Content)
	}
}

func TestProcessPageTitleFallsBackToURL(t *testing.T) {
	html := `<html><head></head><body><main>` + strings.Repeat("content ", 20) + `</main></body></html>`
	page, ok := ProcessPage(html, "https://example.com/no-title", 10000)
	if !ok {
		t.Fatal("expected page to be accepted")
	}
	if page.Title != "https://example.com/no-title" {
		t.Errorf("Title = %q, want fallback to URL", page.Title)
	}
}

func TestProcessPageRejectsShortContent(t *testing.T) {
	html := `<html><body><p>too short</p></body></html>`
	_, ok := ProcessPage(html, "https://example.com/thin", 10000)
	if ok {
		t.Error("expected thin page to be rejected")
	}
}

func TestProcessPageSelectorCascade(t *testing.T) {
	html := `<html><body>
<div class="content">` + strings.Repeat("real content here. ", 10) + `</div>
<div id="ignored">this should not match since .content wins first</div>
</body></html>`

	page, ok := ProcessPage(html, "https://example.com/cascade", 10000)
	if !ok {
		t.Fatal("expected page to be accepted")
	}
	if !strings.Contains(page.Content, "real content here") {
		t.Errorf("Content = %q", page.Content)
	}
}

func TestProcessPageStripsScriptAndStyle(t *testing.T) {
	html := `<html><body><article>` +
		`<script>alert("x")</script><style>.a{color:red}</style>` +
		strings.Repeat("clean article text. ", 10) +
		`</article></body></html>`

	page, ok := ProcessPage(html, "https://example.com/scripty", 10000)
	if !ok {
		t.Fatal("expected page to be accepted")
	}
	if strings.Contains(page.Content, "alert") || strings.Contains(page.Content, "color:red") {
		t.Errorf("Content leaked script/style: %q", page.Content)
	}
}

func TestProcessPageFaviconFallback(t *testing.T) {
	html := `<html><body><main>` + strings.Repeat("content here. ", 20) + `</main></body></html>`
	page, ok := ProcessPage(html, "https://example.com/", 10000)
	if !ok {
		t.Fatal("expected page to be accepted")
	}
	if page.FaviconURL != "https://example.com/favicon.ico" {
		t.Errorf("FaviconURL = %q, want default fallback", page.FaviconURL)
	}
}

func TestProcessPageTruncatesAtWordBoundary(t *testing.T) {
	html := `<html><body><main>` + strings.Repeat("word ", 500) + `</main></body></html>`
	page, ok := ProcessPage(html, "https://example.com/long", 100)
	if !ok {
		t.Fatal("expected page to be accepted")
	}
	if len(page.Content) > 100 {
		t.Errorf("Content length = %d, want <= 100", len(page.Content))
	}
	if strings.HasSuffix(page.Content, "wor") {
		t.Error("expected truncation at word boundary, not mid-word")
	}
}
