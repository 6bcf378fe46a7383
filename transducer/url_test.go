package transducer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty stays empty", input: "", expected: ""},
		{name: "bare host", input: "example.com", expected: "https://example.com"},
		{name: "bare host with path", input: "example.com/a?b=c", expected: "https://example.com/a?b=c"},
		{name: "https kept", input: "https://example.com", expected: "https://example.com"},
		{name: "http kept", input: "http://example.com", expected: "http://example.com"},
		{name: "scheme past the window", input: "go to http://x", expected: "https://go to http://x"},
		{name: "multibyte input", input: "例え.jp/ページ", expected: "https://例え.jp/ページ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, in := range []string{"example.com", "http://a.b/c", "a/b/c"} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), in)
	}
}

func TestBaseOf(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "nested path", input: "https://example.com/a/b/c", expected: "https://example.com/a/b/"},
		{name: "trailing slash", input: "https://example.com/a/", expected: "https://example.com/a/"},
		{name: "root slash", input: "https://example.com/", expected: "https://example.com/"},
		{name: "no path", input: "https://example.com", expected: "https://example.com"},
		{name: "file at root", input: "https://example.com/index.html", expected: "https://example.com/"},
		{name: "slash in query ignored", input: "https://example.com/dir/p?next=/x/y", expected: "https://example.com/dir/"},
		{name: "query without path", input: "https://example.com?x=/y", expected: "https://example.com"},
		{name: "no scheme separator", input: "not-a-url", expected: "not-a-url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BaseOf(tt.input))
		})
	}
}

func TestResolveHref(t *testing.T) {
	const page = "https://h.example/dir/page"
	base := BaseOf(page)

	tests := []struct {
		name     string
		href     string
		legacy   bool
		expected string
	}{
		{name: "absolute", href: "http://other.example/x", expected: "http://other.example/x"},
		{name: "absolute upper case scheme", href: "HTTPS://other.example/", expected: "HTTPS://other.example/"},
		{name: "root relative", href: "/x", expected: "https://h.example/x"},
		{name: "relative", href: "x", expected: "https://h.example/dir/x"},
		{name: "protocol relative", href: "//cdn.example/lib", expected: "https://cdn.example/lib"},
		{name: "relative containing http", href: "httpdocs/a", expected: "https://h.example/dir/httpdocs/a"},
		{name: "legacy keeps anything with http", href: "httpdocs/a", legacy: true, expected: "httpdocs/a"},
		{name: "legacy root relative", href: "/x", legacy: true, expected: "https://h.example/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveHref(tt.href, base, page, tt.legacy))
		})
	}
}

func TestResolveHref_BaseWithoutSlash(t *testing.T) {
	assert.Equal(t, "https://h.example/x", ResolveHref("x", "https://h.example", "https://h.example", false))
}
