package transducer

import (
	"strings"
)

// Header opens every simplified document.
const Header = `<!DOCTYPE html><html><head><meta charset="UTF-8"><style>` +
	`body{font-family:'Segoe UI',Tahoma,Geneva,Verdana,sans-serif;line-height:1.6;margin:20px;color:#333;background-color:#fafafa;}` +
	` a{color:#666;text-decoration:underline;margin-right:8px;} a:hover{color:#333;}` +
	`</style></head><body>`

// Footer closes every simplified document.
const Footer = `</body></html>`

const (
	DefaultMaxLabelLength = 50
	DefaultProxyPath      = "/proxy"
	ellipsis              = "..."
)

// allowed lists the tags kept in the output, open and close forms alike.
// They are emitted bare: attributes never survive.
var allowed = map[string]bool{
	"title": true,
	"br":    true,
	"h1":    true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"b":    true,
	"i":    true,
	"li":   true,
	"ul":   true,
	"ol":   true,
	"code": true,
	"pre":  true,
}

// Options tunes link rewriting.
type Options struct {
	// MaxLabelLength bounds visible link text in runes. Zero means
	// DefaultMaxLabelLength, a negative value disables truncation.
	MaxLabelLength int
	// LegacyAbsoluteCheck treats any href containing "http" as absolute.
	LegacyAbsoluteCheck bool
	// ProxyLink maps an absolute URL to the href of the rewritten anchor.
	// Nil routes through DefaultProxyPath.
	ProxyLink func(absolute string) string
}

func (o Options) maxLabel() int {
	if o.MaxLabelLength == 0 {
		return DefaultMaxLabelLength
	}
	return o.MaxLabelLength
}

func (o Options) proxyLink() func(string) string {
	if o.ProxyLink == nil {
		return ProxyLink(DefaultProxyPath, "")
	}
	return o.ProxyLink
}

// Transduce converts page markup into a complete simplified document.
// baseURL and pageURL must come from the URL the page was actually served
// from, after redirects.
func Transduce(body, baseURL, pageURL string, opts Options) string {
	return Wrap(Simplify(body, baseURL, pageURL, opts))
}

// Wrap surrounds a simplified body with the fixed header and footer.
func Wrap(body string) string {
	var b strings.Builder
	b.Grow(len(Header) + len(body) + len(Footer))
	b.WriteString(Header)
	b.WriteString(body)
	b.WriteString(Footer)
	return b.String()
}

// Simplify runs the transducer and returns the filtered body alone. It
// never fails: malformed markup is dropped rather than reported.
func Simplify(body, baseURL, pageURL string, opts Options) string {
	t := &transducer{
		lex:          NewLexer(body),
		base:         baseURL,
		page:         pageURL,
		opts:         opts,
		noCloseAfter: -1,
	}
	t.out.Grow(len(body) / 2)
	t.run()
	return t.out.String()
}

type transducer struct {
	lex  *Lexer
	out  strings.Builder
	base string
	page string
	opts Options

	// noCloseAfter is the offset from which a lookahead already failed to
	// find "</a>"; anchors opened past it are dropped without rescanning.
	noCloseAfter int
}

func (t *transducer) run() {
	for {
		tok, ok := t.lex.Next()
		if !ok {
			return
		}
		if tok.Kind == TextToken {
			// no bare '<' reaches the output
			t.out.WriteString(strings.ReplaceAll(tok.Raw, "<", "&lt;"))
			continue
		}
		if !tok.Complete() {
			// cut off at end of input
			continue
		}

		switch tok.Class {
		case ClassAnchorOpen:
			t.rewriteAnchor(tok)
		case ClassScriptOpen:
			t.lex.SkipElement("script")
		case ClassStyleOpen:
			t.lex.SkipElement("style")
		case ClassOther:
			t.emitAllowed(tok)
		}
	}
}

func (t *transducer) emitAllowed(tok Token) {
	if !allowed[tok.Name] {
		return
	}
	switch {
	case tok.Name == "br":
		t.out.WriteString("<br>")
	case tok.Closing:
		t.out.WriteString("</" + tok.Name + ">")
	default:
		t.out.WriteString("<" + tok.Name + ">")
	}
}
