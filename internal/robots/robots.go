// Package robots fetches, parses, and caches robots.txt per origin, and
// answers allow/delay/sitemap queries against the cached rules.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/EngineSearch/crawler/internal/retry"
)

// Rules holds the parsed directives that apply to our user agent for one
// origin.
type Rules struct {
	DisallowedPaths []string
	CrawlDelay      *float64
	Sitemaps        []string
}

func permissiveRules() Rules {
	return Rules{}
}

// IsPathAllowed reports whether path is not blocked by any disallow prefix.
func (r Rules) IsPathAllowed(path string) bool {
	for _, disallowed := range r.DisallowedPaths {
		if strings.HasPrefix(path, disallowed) {
			return false
		}
	}
	return true
}

// parse implements the two-pass robots.txt parser: pass one decides whether
// a specific named user-agent block applies (exact match, or a substring of
// our UA other than "*"); pass two collects that block's directives.
// Sitemap directives are UA-independent.
func parse(content, userAgent string) Rules {
	uaLower := strings.ToLower(userAgent)

	hasSpecificMatch := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := splitDirective(line)
		if !ok || key != "user-agent" {
			continue
		}
		agent := strings.ToLower(value)
		if agent == uaLower || (agent != "*" && strings.Contains(uaLower, agent)) {
			hasSpecificMatch = true
			break
		}
	}

	var (
		disallowed       []string
		crawlDelay       *float64
		sitemaps         []string
		currentUA        string
		matchesOurAgent  bool
	)

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := splitDirective(line)
		if !ok {
			continue
		}

		switch key {
		case "user-agent":
			currentUA = strings.ToLower(value)
			if hasSpecificMatch {
				matchesOurAgent = currentUA == uaLower || (currentUA != "*" && strings.Contains(uaLower, currentUA))
			} else {
				matchesOurAgent = currentUA == "*"
			}
		case "disallow":
			if matchesOurAgent && value != "" {
				disallowed = append(disallowed, value)
			}
		case "crawl-delay":
			if matchesOurAgent && crawlDelay == nil {
				if d, err := strconv.ParseFloat(value, 64); err == nil {
					crawlDelay = &d
				}
			}
		case "sitemap":
			sitemaps = append(sitemaps, value)
		}
	}

	return Rules{DisallowedPaths: disallowed, CrawlDelay: crawlDelay, Sitemaps: sitemaps}
}

func splitDirective(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(line[:idx]))
	value = strings.TrimSpace(line[idx+1:])
	return key, value, true
}

// Manager fetches and caches robots.txt per origin and answers queries
// against the cached rules.
type Manager struct {
	log       zerolog.Logger
	userAgent string
	retry     *retry.Policy
	client    *http.Client

	mu    sync.Mutex
	cache map[string]Rules
}

// New returns a Manager that identifies itself with userAgent when fetching
// robots.txt.
func New(log zerolog.Logger, userAgent string) *Manager {
	log.Info().Str("user_agent", userAgent).Msg("initializing robots manager")
	return &Manager{
		log:       log,
		userAgent: userAgent,
		retry:     retry.New(log),
		client:    &http.Client{Timeout: 10 * time.Second},
		cache:     make(map[string]Rules),
	}
}

// IsAllowed reports whether rawURL's path is permitted by the origin's
// cached (or freshly fetched) robots.txt rules.
func (m *Manager) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}
	if u.Host == "" {
		return false, fmt.Errorf("no host in URL: %s", rawURL)
	}

	rules, err := m.getOrFetch(ctx, u.Host, u.Scheme)
	if err != nil {
		return false, err
	}

	allowed := rules.IsPathAllowed(u.Path)
	if !allowed {
		m.log.Debug().Str("url", rawURL).Msg("url blocked by robots.txt")
	}
	return allowed, nil
}

// GetCrawlDelay returns the origin's Crawl-delay directive, if any.
func (m *Manager) GetCrawlDelay(ctx context.Context, origin string) *float64 {
	rules, err := m.getOrFetch(ctx, origin, "https")
	if err != nil {
		m.log.Warn().Str("domain", origin).Err(err).Msg("failed to get crawl delay")
		return nil
	}
	return rules.CrawlDelay
}

// GetSitemaps returns the origin's Sitemap directives.
func (m *Manager) GetSitemaps(ctx context.Context, origin string) []string {
	rules, err := m.getOrFetch(ctx, origin, "https")
	if err != nil {
		m.log.Warn().Str("domain", origin).Err(err).Msg("failed to get sitemaps")
		return nil
	}
	return rules.Sitemaps
}

func (m *Manager) getOrFetch(ctx context.Context, origin, scheme string) (Rules, error) {
	m.mu.Lock()
	if rules, ok := m.cache[origin]; ok {
		m.mu.Unlock()
		return rules, nil
	}
	m.mu.Unlock()

	if scheme == "" {
		scheme = "https"
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, origin)
	m.log.Debug().Str("url", robotsURL).Msg("fetching robots.txt")

	content, err := m.fetch(ctx, robotsURL)
	var rules Rules
	if err != nil {
		m.log.Warn().Str("domain", origin).Err(err).Msg("failed to fetch robots.txt, using permissive rules")
		rules = permissiveRules()
	} else {
		rules = parse(content, m.userAgent)
		m.log.Info().Str("domain", origin).Msg("cached robots.txt")
	}

	m.mu.Lock()
	m.cache[origin] = rules
	m.mu.Unlock()
	return rules, nil
}

func (m *Manager) fetch(ctx context.Context, robotsURL string) (string, error) {
	resp, err := m.retry.ExecuteHTTP(ctx, robotsURL, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", m.userAgent)
		return m.client.Do(req)
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("robots.txt not found (status: %d)", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ClearCache drops the cached rules for a single origin.
func (m *Manager) ClearCache(origin string) {
	m.mu.Lock()
	delete(m.cache, origin)
	m.mu.Unlock()
	m.log.Info().Str("domain", origin).Msg("cleared robots.txt cache")
}

// ClearAllCache drops all cached rules.
func (m *Manager) ClearAllCache() {
	m.mu.Lock()
	m.cache = make(map[string]Rules)
	m.mu.Unlock()
	m.log.Info().Msg("cleared all robots.txt cache")
}

// Stats summarizes the manager's cache size.
type Stats struct {
	CachedDomains int
}

// Stats returns a snapshot of the manager's cache.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{CachedDomains: len(m.cache)}
}
