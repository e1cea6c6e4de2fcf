package extract

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/EngineSearch/crawler/internal/model"
)

var trackingPatterns = []string{
	"google-analytics.com", "facebook.com/tr", "doubleclick.net",
	"pixel", "tracker", "analytics", "beacon",
	"1x1.gif", "blank.gif", "transparent.gif",
}

func isTrackingImage(imageURL string) bool {
	lower := strings.ToLower(imageURL)
	for _, pattern := range trackingPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// ExtractImages returns every eligible image record found in html: the
// Open Graph image first (if present), then <img> tags passing the
// data-URI/SVG/tracking/dimension filters.
func ExtractImages(html, sourceURL, pageTitle, pageContent string) ([]model.ExtractedImage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil, err
	}
	domain := base.Hostname()
	crawledAt := time.Now().UTC()
	truncated := truncateRunes(pageContent, 500)

	var images []model.ExtractedImage

	if og, ok := extractOGImage(doc, base, sourceURL, pageTitle, truncated, domain, crawledAt); ok {
		images = append(images, og)
	}

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok {
			return
		}
		if strings.HasPrefix(src, "data:") {
			return
		}
		if strings.HasSuffix(strings.ToLower(src), ".svg") {
			return
		}

		abs, err := base.Parse(src)
		if err != nil {
			return
		}
		imageURL := abs.String()

		width, hasWidth := parseDimension(img, "width")
		height, hasHeight := parseDimension(img, "height")
		if hasWidth && hasHeight && (width < 100 || height < 100) {
			return
		}

		if isTrackingImage(imageURL) {
			return
		}

		images = append(images, model.ExtractedImage{
			ID:          uuid.NewString(),
			ImageURL:    imageURL,
			SourceURL:   sourceURL,
			AltText:     img.AttrOr("alt", ""),
			Title:       img.AttrOr("title", ""),
			Figcaption:  extractFigcaption(img),
			SrcsetURL:   parseSrcset(img.AttrOr("srcset", ""), base),
			Width:       width,
			Height:      height,
			PageTitle:   pageTitle,
			PageContent: truncated,
			Domain:      domain,
			CrawledAt:   crawledAt,
			IsOGImage:   false,
		})
	})

	return images, nil
}

func extractOGImage(doc *goquery.Document, base *url.URL, sourceURL, pageTitle, pageContent, domain string, crawledAt time.Time) (model.ExtractedImage, bool) {
	meta := doc.Find(`meta[property="og:image"]`).First()
	if meta.Length() == 0 {
		return model.ExtractedImage{}, false
	}
	content, ok := meta.Attr("content")
	if !ok || content == "" {
		return model.ExtractedImage{}, false
	}

	abs, err := base.Parse(content)
	if err != nil {
		return model.ExtractedImage{}, false
	}
	imageURL := abs.String()
	if isTrackingImage(imageURL) {
		return model.ExtractedImage{}, false
	}

	altText := doc.Find(`meta[property="og:image:alt"]`).First().AttrOr("content", "")
	width, _ := strconv.Atoi(doc.Find(`meta[property="og:image:width"]`).First().AttrOr("content", ""))
	height, _ := strconv.Atoi(doc.Find(`meta[property="og:image:height"]`).First().AttrOr("content", ""))

	return model.ExtractedImage{
		ID:          uuid.NewString(),
		ImageURL:    imageURL,
		SourceURL:   sourceURL,
		AltText:     altText,
		Title:       "Open Graph Image",
		Width:       width,
		Height:      height,
		PageTitle:   pageTitle,
		PageContent: pageContent,
		Domain:      domain,
		CrawledAt:   crawledAt,
		IsOGImage:   true,
	}, true
}

func extractFigcaption(img *goquery.Selection) string {
	figure := img.Closest("figure")
	if figure.Length() == 0 {
		return ""
	}
	caption := strings.TrimSpace(figure.Find("figcaption").First().Text())
	return caption
}

// parseSrcset picks the highest-resolution candidate in a srcset attribute:
// density descriptors (1x, 2x) and width descriptors (800w) are compared by
// their numeric value, defaulting to 1x when a candidate has no descriptor.
func parseSrcset(srcset string, base *url.URL) string {
	if srcset == "" {
		return ""
	}

	var maxValue float64
	var maxURL string

	for _, source := range strings.Split(srcset, ",") {
		parts := strings.Fields(strings.TrimSpace(source))
		if len(parts) == 0 {
			continue
		}
		candidateURL := parts[0]
		descriptor := "1x"
		if len(parts) > 1 {
			descriptor = parts[1]
		}

		var value float64
		switch {
		case strings.HasSuffix(descriptor, "x"):
			value, _ = strconv.ParseFloat(strings.TrimSuffix(descriptor, "x"), 64)
			if value == 0 {
				value = 1.0
			}
		case strings.HasSuffix(descriptor, "w"):
			value, _ = strconv.ParseFloat(strings.TrimSuffix(descriptor, "w"), 64)
		default:
			value = 1.0
		}

		if value > maxValue {
			maxValue = value
			maxURL = candidateURL
		}
	}

	if maxURL == "" {
		return ""
	}
	abs, err := base.Parse(maxURL)
	if err != nil {
		return ""
	}
	return abs.String()
}

func parseDimension(s *goquery.Selection, attr string) (int, bool) {
	v, ok := s.Attr(attr)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func truncateRunes(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "…"
}
