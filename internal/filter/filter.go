// Package filter decides whether a URL, content type, and response size are
// eligible to be crawled and processed.
package filter

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var defaultContentTypes = []string{
	"text/html", "text/plain", "application/xhtml+xml", "application/xml",
}

const defaultMaxFileSize = 10 * 1024 * 1024 // 10 MB

// Filter gates crawl targets by content type, size, URL pattern, and domain.
type Filter struct {
	log zerolog.Logger

	allowedContentTypes map[string]struct{}
	maxFileSize         int64 // 0 = unlimited
	includePatterns     []*regexp.Regexp
	excludePatterns     []*regexp.Regexp
	domainWhitelist     map[string]struct{}
	domainBlacklist     map[string]struct{}
}

// New returns a Filter with the crawler's default content-type allowlist and
// a 10 MB max file size; no URL/domain restrictions.
func New(log zerolog.Logger) *Filter {
	f := &Filter{
		log:                 log,
		allowedContentTypes: make(map[string]struct{}, len(defaultContentTypes)),
		maxFileSize:         defaultMaxFileSize,
		domainWhitelist:     make(map[string]struct{}),
		domainBlacklist:     make(map[string]struct{}),
	}
	for _, ct := range defaultContentTypes {
		f.allowedContentTypes[ct] = struct{}{}
	}
	return f
}

// AddAllowedContentType registers an additional acceptable MIME type.
func (f *Filter) AddAllowedContentType(contentType string) {
	f.allowedContentTypes[strings.ToLower(contentType)] = struct{}{}
}

// SetMaxFileSize sets the maximum response size in bytes; 0 means unlimited.
func (f *Filter) SetMaxFileSize(size int64) { f.maxFileSize = size }

// AddURLIncludePattern adds a regex that a URL must match (if any include
// patterns are registered) to be allowed.
func (f *Filter) AddURLIncludePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	f.includePatterns = append(f.includePatterns, re)
	return nil
}

// AddURLExcludePattern adds a regex that disqualifies a matching URL,
// regardless of include patterns.
func (f *Filter) AddURLExcludePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	f.excludePatterns = append(f.excludePatterns, re)
	return nil
}

// AddDomainWhitelist restricts crawling to the given domain (once any
// whitelist entry exists, only whitelisted domains are allowed).
func (f *Filter) AddDomainWhitelist(domain string) {
	f.domainWhitelist[strings.ToLower(domain)] = struct{}{}
}

// AddDomainBlacklist excludes the given domain; blacklist always wins over
// whitelist.
func (f *Filter) AddDomainBlacklist(domain string) {
	f.domainBlacklist[strings.ToLower(domain)] = struct{}{}
}

// IsContentTypeAllowed reports whether contentType (optionally carrying a
// "; charset=..." suffix) is in the allowlist.
func (f *Filter) IsContentTypeAllowed(contentType string) bool {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	_, ok := f.allowedContentTypes[base]
	if !ok {
		f.log.Debug().Str("content_type", contentType).Msg("content type not allowed")
	}
	return ok
}

// IsFileSizeAllowed reports whether size is within the configured maximum.
func (f *Filter) IsFileSizeAllowed(size int64) bool {
	if f.maxFileSize == 0 {
		return true
	}
	allowed := size <= f.maxFileSize
	if !allowed {
		f.log.Warn().Int64("size", size).Int64("max", f.maxFileSize).Msg("file size exceeds limit")
	}
	return allowed
}

// IsURLAllowed reports whether rawURL passes the domain and pattern filters.
// Blacklist and exclude patterns always take precedence over whitelist and
// include patterns.
func (f *Filter) IsURLAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		f.log.Warn().Str("url", rawURL).Err(err).Msg("invalid url")
		return false
	}

	if host := u.Hostname(); host != "" {
		domain := strings.ToLower(host)
		if len(f.domainBlacklist) > 0 {
			if _, blocked := f.domainBlacklist[domain]; blocked {
				f.log.Debug().Str("domain", domain).Msg("domain blacklisted")
				return false
			}
		}
		if len(f.domainWhitelist) > 0 {
			if _, allowed := f.domainWhitelist[domain]; !allowed {
				f.log.Debug().Str("domain", domain).Msg("domain not in whitelist")
				return false
			}
		}
	}

	for _, re := range f.excludePatterns {
		if re.MatchString(rawURL) {
			f.log.Debug().Str("url", rawURL).Msg("url matches exclude pattern")
			return false
		}
	}

	if len(f.includePatterns) > 0 {
		matched := false
		for _, re := range f.includePatterns {
			if re.MatchString(rawURL) {
				matched = true
				break
			}
		}
		if !matched {
			f.log.Debug().Str("url", rawURL).Msg("url does not match any include pattern")
			return false
		}
	}

	return true
}

// Stats summarizes the current filter configuration, for monitoring.
type Stats struct {
	AllowedContentTypes   int
	MaxFileSize           int64
	URLIncludePatterns    int
	URLExcludePatterns    int
	DomainWhitelistCount  int
	DomainBlacklistCount  int
}

// Stats returns a snapshot of the filter's configuration counters.
func (f *Filter) Stats() Stats {
	return Stats{
		AllowedContentTypes:  len(f.allowedContentTypes),
		MaxFileSize:          f.maxFileSize,
		URLIncludePatterns:   len(f.includePatterns),
		URLExcludePatterns:   len(f.excludePatterns),
		DomainWhitelistCount: len(f.domainWhitelist),
		DomainBlacklistCount: len(f.domainBlacklist),
	}
}
