package urlnorm

import "testing"

func TestNormalize(t *testing.T) {
	p := New()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips tracking params but keeps others",
			in:   "https://example.com/page?utm_source=google&utm_medium=cpc&id=123",
			want: "https://example.com/page?id=123",
		},
		{
			name: "removes fragment",
			in:   "https://example.com/page#section",
			want: "https://example.com/page",
		},
		{
			name: "lowercases scheme and host, preserves path case",
			in:   "HTTPS://EXAMPLE.COM/Page",
			want: "https://example.com/Page",
		},
		{
			name: "strips default http port",
			in:   "http://example.com:80/page",
			want: "http://example.com/page",
		},
		{
			name: "strips default https port",
			in:   "https://example.com:443/page",
			want: "https://example.com/page",
		},
		{
			name: "keeps non-default port",
			in:   "http://example.com:8080/page",
			want: "http://example.com:8080/page",
		},
		{
			name: "sorts surviving query params",
			in:   "https://example.com/page?z=1&a=2",
			want: "https://example.com/page?a=2&z=1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := p.Normalize(tc.in)
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	p := New()

	inputs := []string{
		"HTTPS://EXAMPLE.COM:443/Page?z=3&utm_source=x&a=1#top",
		"http://example.com:80/path?b=2&a=1",
		"https://example.com/page?utm_source=google&id=123",
	}
	for _, in := range inputs {
		once, err := p.Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", in, err)
		}
		twice, err := p.Normalize(once)
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", once, err)
		}
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestURLsMatch(t *testing.T) {
	p := New()

	if !p.URLsMatch("https://example.com/page?utm_source=x", "https://example.com/page") {
		t.Error("expected URLs differing only by tracking param to match")
	}
	if p.URLsMatch("https://example.com/a", "https://example.com/b") {
		t.Error("expected distinct paths not to match")
	}
}

func TestExtractCanonical(t *testing.T) {
	cases := []struct {
		name string
		html string
		want string
		ok   bool
	}{
		{
			name: "rel before href",
			html: `<html><head><link rel="canonical" href="https://example.com/real"></head></html>`,
			want: "https://example.com/real",
			ok:   true,
		},
		{
			name: "href before rel",
			html: `<link href="https://example.com/real" rel="canonical">`,
			want: "https://example.com/real",
			ok:   true,
		},
		{
			name: "absent",
			html: `<html><head></head></html>`,
			want: "",
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractCanonical(tc.html)
			if ok != tc.ok || got != tc.want {
				t.Errorf("ExtractCanonical() = (%q, %v), want (%q, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestAddRemoveParam(t *testing.T) {
	p := New()
	p.AddRemoveParam("ref")

	got, err := p.Normalize("https://example.com/page?ref=abc&id=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://example.com/page?id=1"
	if got != want {
		t.Errorf("Normalize() = %q, want %q", got, want)
	}
}
