// Package headers builds the outbound HTTP header set the crawler presents
// to origin servers.
package headers

import (
	"strings"

	"github.com/rs/zerolog"
)

// Manager builds a consistent, polite header set for outbound requests.
type Manager struct {
	userAgent      string
	contactEmail   string
	botURL         string
	acceptLanguage string
	acceptEncoding string
	accept         string
	sendReferer    bool
}

// New returns a Manager with the crawler's default Accept/Accept-Language/
// Accept-Encoding values and Referer forwarding enabled. contactEmail and
// botURL may be empty.
func New(log zerolog.Logger, userAgent, contactEmail, botURL string) *Manager {
	log.Info().Str("user_agent", userAgent).Str("contact", contactEmail).Msg("initializing header manager")
	return &Manager{
		userAgent:      userAgent,
		contactEmail:   contactEmail,
		botURL:         botURL,
		acceptLanguage: "en-US,en;q=0.9",
		acceptEncoding: "gzip, deflate, br",
		accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		sendReferer:    true,
	}
}

// WithConfig returns a Manager with a custom Accept-Language value.
func WithConfig(log zerolog.Logger, userAgent, contactEmail, botURL, acceptLanguage string) *Manager {
	m := New(log, userAgent, contactEmail, botURL)
	m.acceptLanguage = acceptLanguage
	return m
}

// UserAgentString returns the full User-Agent header value: the base UA
// plus a parenthesized "(+botURL; contactEmail)" suffix when either is set.
func (m *Manager) UserAgentString() string {
	var additions []string
	if m.botURL != "" {
		additions = append(additions, "+"+m.botURL)
	}
	if m.contactEmail != "" {
		additions = append(additions, m.contactEmail)
	}
	if len(additions) == 0 {
		return m.userAgent
	}
	return m.userAgent + " (" + strings.Join(additions, "; ") + ")"
}

// BaseUserAgent returns the User-Agent without the contact suffix, for
// quieter log lines.
func (m *Manager) BaseUserAgent() string { return m.userAgent }

// ContactEmail returns the configured contact email, or "" if unset.
func (m *Manager) ContactEmail() string { return m.contactEmail }

// BotURL returns the configured bot documentation URL, or "" if unset.
func (m *Manager) BotURL() string { return m.botURL }

// SetSendReferer toggles whether BuildHeaders includes a Referer header.
func (m *Manager) SetSendReferer(enabled bool) { m.sendReferer = enabled }

// SetAcceptLanguage overrides the Accept-Language header value.
func (m *Manager) SetAcceptLanguage(language string) { m.acceptLanguage = language }

// BuildHeaders returns the full outbound header set for a request, optionally
// including a Referer when referer is non-empty and sendReferer is enabled.
func (m *Manager) BuildHeaders(referer string) map[string]string {
	h := map[string]string{
		"User-Agent":      m.UserAgentString(),
		"Accept":          m.accept,
		"Accept-Language": m.acceptLanguage,
		"Accept-Encoding": m.acceptEncoding,
		"Connection":      "keep-alive",
		"Cache-Control":   "max-age=0",
	}
	if m.sendReferer && referer != "" {
		h["Referer"] = referer
	}
	return h
}
