package headers

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestUserAgentWithContact(t *testing.T) {
	m := New(zerolog.Nop(), "TestBot/1.0", "test@example.com", "https://example.com/bot")
	ua := m.UserAgentString()

	if !strings.Contains(ua, "TestBot/1.0") {
		t.Errorf("ua %q missing base agent", ua)
	}
	if !strings.Contains(ua, "+https://example.com/bot") {
		t.Errorf("ua %q missing bot url", ua)
	}
	if !strings.Contains(ua, "test@example.com") {
		t.Errorf("ua %q missing contact email", ua)
	}
}

func TestUserAgentWithoutContact(t *testing.T) {
	m := New(zerolog.Nop(), "TestBot/1.0", "", "")
	if got := m.UserAgentString(); got != "TestBot/1.0" {
		t.Errorf("UserAgentString() = %q, want %q", got, "TestBot/1.0")
	}
}

func TestHeadersContainEssentials(t *testing.T) {
	m := New(zerolog.Nop(), "TestBot/1.0", "bot@example.com", "https://example.com/bot")
	h := m.BuildHeaders("")

	for _, key := range []string{"User-Agent", "Accept", "Accept-Language", "Accept-Encoding"} {
		if _, ok := h[key]; !ok {
			t.Errorf("missing header %q", key)
		}
	}
}

func TestHeadersWithReferer(t *testing.T) {
	m := New(zerolog.Nop(), "TestBot/1.0", "", "")
	h := m.BuildHeaders("https://example.com/previous")
	if h["Referer"] != "https://example.com/previous" {
		t.Errorf("Referer = %q, want previous url", h["Referer"])
	}
}

func TestHeadersWithoutRefererWhenDisabled(t *testing.T) {
	m := New(zerolog.Nop(), "TestBot/1.0", "", "")
	m.SetSendReferer(false)
	h := m.BuildHeaders("https://example.com/previous")
	if _, ok := h["Referer"]; ok {
		t.Error("expected no Referer header when disabled")
	}
}

func TestAcceptEncodingCompression(t *testing.T) {
	m := New(zerolog.Nop(), "TestBot/1.0", "", "")
	h := m.BuildHeaders("")
	for _, enc := range []string{"gzip", "deflate", "br"} {
		if !strings.Contains(h["Accept-Encoding"], enc) {
			t.Errorf("Accept-Encoding missing %q", enc)
		}
	}
}

func TestCustomAcceptLanguage(t *testing.T) {
	m := WithConfig(zerolog.Nop(), "TestBot/1.0", "", "", "fr-FR,fr;q=0.9")
	h := m.BuildHeaders("")
	if h["Accept-Language"] != "fr-FR,fr;q=0.9" {
		t.Errorf("Accept-Language = %q, want fr-FR,fr;q=0.9", h["Accept-Language"])
	}
}
