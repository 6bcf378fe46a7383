package transducer

import (
	"strings"
)

// Normalize makes user input an absolute URL. Unless "http://" or
// "https://" appears within the first 8 characters, "https://" is
// prepended. Empty input stays empty; no further validation is done.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	head := raw
	if n := runePrefixLen(raw, 8); n < len(raw) {
		head = raw[:n]
	}
	if strings.Contains(head, "http://") || strings.Contains(head, "https://") {
		return raw
	}
	return "https://" + raw
}

// BaseOf returns the directory-like prefix used to resolve relative links
// on the page at pageURL: everything through the third '/' (the authority
// root) extended through the last '/' of the path. Without a third '/' the
// whole URL is returned. Query and fragment never contribute a '/'.
func BaseOf(pageURL string) string {
	end, ok := authorityEnd(pageURL)
	if !ok || end >= len(pageURL) || pageURL[end] != '/' {
		return pageURL[:end]
	}
	root := end + 1
	path := pageURL[root:]
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return pageURL[:root+i+1]
	}
	return pageURL[:root]
}

// Origin returns the scheme and host of pageURL without a trailing slash.
func Origin(pageURL string) string {
	end, _ := authorityEnd(pageURL)
	return pageURL[:end]
}

// ResolveHref turns an anchor target into an absolute URL relative to the
// page. Targets with an http or https scheme are kept, protocol-relative
// ones take the page's scheme, root-relative ones are joined to the page
// origin and everything else to base with exactly one '/'.
//
// With legacy set, any href containing "http" is treated as absolute.
func ResolveHref(href, base, pageURL string, legacy bool) string {
	if legacy {
		if strings.Contains(href, "http") {
			return href
		}
	} else {
		if hasHTTPScheme(href) {
			return href
		}
		if strings.HasPrefix(href, "//") {
			return schemeOf(pageURL) + ":" + href
		}
	}

	if strings.HasPrefix(href, "/") {
		return Origin(pageURL) + href
	}
	if strings.HasSuffix(base, "/") {
		return base + href
	}
	return base + "/" + href
}

// authorityEnd returns the index where the authority of u ends, i.e. the
// position of the third '/' or of the first '?' or '#' after "//". ok is
// false when u has no "//" at all, in which case the whole string counts.
func authorityEnd(u string) (int, bool) {
	i := strings.Index(u, "//")
	if i < 0 {
		return len(u), false
	}
	rest := u[i+2:]
	if j := strings.IndexAny(rest, "/?#"); j >= 0 {
		return i + 2 + j, true
	}
	return len(u), true
}

func hasHTTPScheme(s string) bool {
	return hasPrefixFold(s, "http://") || hasPrefixFold(s, "https://")
}

func schemeOf(u string) string {
	if i := strings.Index(u, "://"); i > 0 {
		return strings.ToLower(u[:i])
	}
	return "https"
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// runePrefixLen returns the byte length of the first n runes of s.
func runePrefixLen(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}
