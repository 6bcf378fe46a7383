package transducer

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ProxyLink returns a mapper that routes an absolute URL back through the
// proxy endpoint. apiKey is appended only when non-empty.
func ProxyLink(endpoint, apiKey string) func(string) string {
	suffix := ""
	if apiKey != "" {
		suffix = "&api_key=" + queryEscape(apiKey)
	}
	return func(absolute string) string {
		return endpoint + "?url=" + queryEscape(absolute) + suffix
	}
}

// queryEscape percent-encodes s for a query value, spaces as %20.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// rewriteAnchor handles an anchor-open token. The lexer is copied to look
// for the closing "</a>"; only a successful lookahead is committed.
func (t *transducer) rewriteAnchor(open Token) {
	start := t.lex.Pos()
	if t.noCloseAfter >= 0 && start >= t.noCloseAfter {
		return
	}

	ahead := *t.lex
	label, closed := consumeAnchorContent(&ahead)
	if !closed {
		t.noCloseAfter = start
		return
	}
	t.lex.pos = ahead.pos

	href, ok := extractHref(open.Raw)
	if !ok {
		return
	}
	abs := ResolveHref(href, t.base, t.page, t.opts.LegacyAbsoluteCheck)
	t.writeLink(abs, label)
}

// consumeAnchorContent collects the text up to the first "</a>". Markup
// inside the anchor is discarded. closed is false when the input ends first.
func consumeAnchorContent(l *Lexer) (label string, closed bool) {
	var text strings.Builder
	for {
		tok, ok := l.Next()
		if !ok {
			return "", false
		}
		if tok.Kind == TextToken {
			text.WriteString(tok.Raw)
			continue
		}
		switch tok.Class {
		case ClassAnchorClose:
			return text.String(), true
		case ClassScriptOpen:
			l.SkipElement("script")
		case ClassStyleOpen:
			l.SkipElement("style")
		}
	}
}

func (t *transducer) writeLink(abs, label string) {
	label = strings.TrimSpace(html.UnescapeString(label))
	if label == "" {
		label = abs
	}
	label = truncateLabel(label, t.opts.maxLabel())

	t.out.WriteString(`<a href="`)
	t.out.WriteString(html.EscapeString(t.opts.proxyLink()(abs)))
	t.out.WriteString(`">`)
	t.out.WriteString(html.EscapeString(label))
	t.out.WriteString(`</a>`)
}

// truncateLabel shortens s to max runes, the last three being "...".
// A non-positive max leaves s untouched.
func truncateLabel(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	keep := max - len(ellipsis)
	if keep < 0 {
		keep = 0
	}
	return s[:runePrefixLen(s, keep)] + ellipsis
}

// extractHref returns the decoded value of the href attribute of an anchor
// tag. Values may be double quoted, single quoted or bare.
func extractHref(tag string) (string, bool) {
	s := strings.TrimSuffix(strings.TrimPrefix(tag, "<"), ">")
	// skip the tag name
	i := strings.IndexAny(s, " \t\r\n\f/")
	if i < 0 {
		return "", false
	}
	s = s[i:]

	for {
		s = strings.TrimLeft(s, " \t\r\n\f/")
		if s == "" {
			return "", false
		}
		end := strings.IndexAny(s, " \t\r\n\f/=")
		if end < 0 {
			end = len(s)
		}
		name := s[:end]
		s = strings.TrimLeft(s[end:], " \t\r\n\f")

		value, hasValue := "", false
		if strings.HasPrefix(s, "=") {
			s = strings.TrimLeft(s[1:], " \t\r\n\f")
			value, s = attrValue(s)
			hasValue = true
		}
		if hasValue && strings.EqualFold(name, "href") {
			return html.UnescapeString(strings.TrimSpace(value)), true
		}
	}
}

// attrValue splits an attribute value off the front of s.
func attrValue(s string) (value, rest string) {
	if s == "" {
		return "", ""
	}
	if q := s[0]; q == '"' || q == '\'' {
		if end := strings.IndexByte(s[1:], q); end >= 0 {
			return s[1 : 1+end], s[2+end:]
		}
		return s[1:], ""
	}
	end := strings.IndexAny(s, " \t\r\n\f")
	if end < 0 {
		return s, ""
	}
	return s[:end], s[end:]
}
