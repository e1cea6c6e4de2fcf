// Package extract pulls structured page metadata and image records out of
// parsed HTML.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var contentSelectors = []string{
	"main", "article", "[role='main']", ".content", "#content", "body",
}

// PageContent is the metadata and body text extracted from one HTML page.
type PageContent struct {
	Title       string
	Content     string
	Description string
	Keywords    []string
	FaviconURL  string
}

// ProcessPage extracts title, description, keywords, favicon, and main body
// text from rawHTML. The second return value is false when the extracted
// body text is shorter than 50 characters, signalling the caller should drop
// the page.
func ProcessPage(rawHTML, pageURL string, maxContentLength int) (PageContent, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return PageContent{}, false
	}

	title := extractTitle(doc)
	if title == "" {
		title = pageURL
	}

	content := extractContent(doc, rawHTML, maxContentLength)
	if len(content) < 50 {
		return PageContent{}, false
	}

	return PageContent{
		Title:       title,
		Content:     content,
		Description: extractMetaDescription(doc),
		Keywords:    extractKeywords(doc),
		FaviconURL:  extractFavicon(doc, pageURL),
	}, true
}

func extractTitle(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func extractMetaDescription(doc *goquery.Document) string {
	var desc string
	doc.Find(`meta[name="description"], meta[property="og:description"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("content"); ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				desc = trimmed
				return false
			}
		}
		return true
	})
	return desc
}

func extractKeywords(doc *goquery.Document) []string {
	var keywords []string
	doc.Find(`meta[name="keywords"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr("content")
		if !ok {
			return true
		}
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keywords = append(keywords, k)
			}
		}
		return len(keywords) == 0
	})
	return keywords
}

func extractFavicon(doc *goquery.Document, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	for _, sel := range []string{
		`link[rel="icon"]`,
		`link[rel="shortcut icon"]`,
		`link[rel="apple-touch-icon"]`,
	} {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, ok := s.Attr("href")
			if !ok {
				return true
			}
			href = strings.TrimSpace(href)
			if href == "" {
				return true
			}
			if abs, err := base.Parse(href); err == nil {
				found = abs.String()
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	if abs, err := base.Parse("/favicon.ico"); err == nil {
		return abs.String()
	}
	return ""
}

// extractContent tries the content-selector cascade, falling back to a
// recursive text-node walk over the whole document when no selector's text
// exceeds 100 characters.
func extractContent(doc *goquery.Document, rawHTML string, maxLength int) string {
	doc.Find("script, style, noscript").Remove()

	for _, sel := range contentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		cleaned := cleanText(node.Text())
		if len(cleaned) > 100 {
			return truncateAtWordBoundary(cleaned, maxLength)
		}
	}

	return truncateAtWordBoundary(cleanText(walkVisibleText(rawHTML)), maxLength)
}

// walkVisibleText parses rawHTML with golang.org/x/net/html and recursively
// walks the node tree collecting text nodes, skipping script/style/noscript
// subtrees. Used as the last-resort fallback when none of the
// contentSelectors match enough text.
func walkVisibleText(rawHTML string) string {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String()
}

func cleanText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(strings.Fields(strings.Join(lines, " ")), " ")
}

func truncateAtWordBoundary(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}
	truncated := text[:maxLength]
	if idx := strings.LastIndex(truncated, " "); idx >= 0 {
		return truncated[:idx]
	}
	return truncated
}
