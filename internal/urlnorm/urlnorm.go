// Package urlnorm normalizes and canonicalizes URLs so that equivalent
// links are recognized as the same crawl target.
package urlnorm

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// defaultRemoveParams are common tracking query parameters stripped during
// normalization.
var defaultRemoveParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"fbclid", "gclid", "msclkid", "mc_cid", "mc_eid",
	"sessionid", "session_id", "phpsessid", "jsessionid",
}

// Processor normalizes URLs according to a configurable set of rules.
type Processor struct {
	removeParams    map[string]struct{}
	removeFragments bool
	lowercase       bool
	trailingSlash   bool
	sortQueryParams bool
}

// New returns a Processor with the crawler's default normalization rules:
// fragments removed, tracking params stripped, scheme/host lowercased,
// query parameters sorted, no forced trailing slash.
func New() *Processor {
	p := &Processor{
		removeParams:    make(map[string]struct{}, len(defaultRemoveParams)),
		removeFragments: true,
		lowercase:       true,
		trailingSlash:   false,
		sortQueryParams: true,
	}
	for _, k := range defaultRemoveParams {
		p.removeParams[k] = struct{}{}
	}
	return p
}

// AddRemoveParam registers an additional query parameter name to strip.
func (p *Processor) AddRemoveParam(param string) {
	p.removeParams[strings.ToLower(param)] = struct{}{}
}

// SetRemoveFragments toggles fragment stripping.
func (p *Processor) SetRemoveFragments(v bool) { p.removeFragments = v }

// SetLowercase toggles scheme/host lowercasing.
func (p *Processor) SetLowercase(v bool) { p.lowercase = v }

// SetTrailingSlash toggles forcing a trailing slash on extensionless paths.
func (p *Processor) SetTrailingSlash(v bool) { p.trailingSlash = v }

// SetSortQueryParams toggles sorting of surviving query parameters.
func (p *Processor) SetSortQueryParams(v bool) { p.sortQueryParams = v }

// Normalize applies the configured rules to rawURL and returns the
// canonical form.
func (p *Processor) Normalize(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	if p.removeFragments {
		u.Fragment = ""
	}

	if len(p.removeParams) > 0 {
		q := u.Query()
		for key := range q {
			if _, drop := p.removeParams[strings.ToLower(key)]; drop {
				q.Del(key)
			}
		}
		u.RawQuery = p.encodeQuery(q)
	}

	if port := u.Port(); port != "" {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = u.Hostname()
		}
	}

	if p.trailingSlash {
		path := u.Path
		if path != "" && !strings.HasSuffix(path, "/") && !strings.Contains(pathBase(path), ".") {
			u.Path = path + "/"
		}
	}

	if p.lowercase {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = lowercaseHost(u.Host)
	}

	return u.String(), nil
}

// encodeQuery renders q as a query string, sorted when configured; it mirrors
// url.Values.Encode() but lets us choose whether to sort.
func (p *Processor) encodeQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	type pair struct{ k, v string }
	var pairs []pair
	for k, vs := range q {
		for _, v := range vs {
			pairs = append(pairs, pair{k, v})
		}
	}
	if p.sortQueryParams {
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })
	}
	var b strings.Builder
	for i, pr := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(pr.k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(pr.v))
	}
	return b.String()
}

func lowercaseHost(host string) string {
	// Host may carry a port; only the hostname portion is lowercased, a port
	// (if any) is untouched since it is already numeric.
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(host[i:], "]") {
		return strings.ToLower(host[:i]) + host[i:]
	}
	return strings.ToLower(host)
}

func pathBase(path string) string {
	if i := strings.LastIndex(path, "/"); i != -1 {
		return path[i+1:]
	}
	return path
}

var (
	canonicalRe1 = regexp.MustCompile(`(?i)<link[^>]*rel=["']canonical["'][^>]*href=["']([^"']+)["'][^>]*>`)
	canonicalRe2 = regexp.MustCompile(`(?i)<link[^>]*href=["']([^"']+)["'][^>]*rel=["']canonical["'][^>]*>`)
)

// ExtractCanonical looks for a <link rel="canonical" href="..."> tag in raw
// HTML, checking both attribute orders, and returns its href if found.
func ExtractCanonical(html string) (string, bool) {
	if m := canonicalRe1.FindStringSubmatch(html); m != nil {
		return m[1], true
	}
	if m := canonicalRe2.FindStringSubmatch(html); m != nil {
		return m[1], true
	}
	return "", false
}

// URLsMatch reports whether two URLs normalize to the same canonical form.
func (p *Processor) URLsMatch(url1, url2 string) bool {
	n1, err1 := p.Normalize(url1)
	n2, err2 := p.Normalize(url2)
	if err1 != nil || err2 != nil {
		return false
	}
	return n1 == n2
}
