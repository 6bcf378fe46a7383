package transducer

import (
	"strings"
)

// TokenKind separates character data from markup.
type TokenKind int

const (
	TextToken TokenKind = iota
	TagToken
)

// TagClass is the classification of a tag token.
type TagClass int

const (
	ClassOther TagClass = iota
	ClassAnchorOpen
	ClassAnchorClose
	ClassScriptOpen
	ClassScriptClose
	ClassStyleOpen
	ClassStyleClose
	ClassComment
)

// Token is either a run of text or the markup between '<' and the
// following '>'. Tokens reference the source string and are never copied.
type Token struct {
	Kind    TokenKind
	Raw     string
	Class   TagClass
	Name    string // lower-cased tag name, without the closing '/'
	Closing bool
}

// Lexer walks an HTML string in a single forward pass. It never builds a
// tree; callers pull tokens and may skip ahead with SkipPastFold.
//
// A Lexer is a plain value: copying it yields an independent cursor over the
// same input, which is how lookahead is done.
type Lexer struct {
	src string
	pos int
}

// NewLexer returns a lexer positioned at the start of src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src}
}

// EOF reports whether the whole input has been consumed.
func (l *Lexer) EOF() bool {
	return l.pos >= len(l.src)
}

// Pos returns the byte offset of the cursor.
func (l *Lexer) Pos() int {
	return l.pos
}

// Peek returns the byte under the cursor, or 0 at EOF.
func (l *Lexer) Peek() byte {
	if l.EOF() {
		return 0
	}
	return l.src[l.pos]
}

// PeekAt returns the byte n positions past the cursor, or 0 past EOF.
func (l *Lexer) PeekAt(n int) byte {
	if l.pos+n >= len(l.src) || l.pos+n < 0 {
		return 0
	}
	return l.src[l.pos+n]
}

// Advance moves the cursor n bytes forward, stopping at EOF.
func (l *Lexer) Advance(n int) {
	l.pos += n
	if l.pos > len(l.src) {
		l.pos = len(l.src)
	}
}

// TakeUntil consumes input through the first occurrence of b and returns
// it, b included. Without a match it consumes and returns the rest.
func (l *Lexer) TakeUntil(b byte) string {
	start := l.pos
	if i := strings.IndexByte(l.src[start:], b); i >= 0 {
		l.pos = start + i + 1
	} else {
		l.pos = len(l.src)
	}
	return l.src[start:l.pos]
}

// SkipPastFold consumes input through the first ASCII case-insensitive
// occurrence of marker, which must be lower case. It reports false and
// consumes everything when marker does not occur.
func (l *Lexer) SkipPastFold(marker string) bool {
	i := indexFold(l.src[l.pos:], marker)
	if i < 0 {
		l.pos = len(l.src)
		return false
	}
	l.pos += i + len(marker)
	return true
}

// SkipElement discards the raw content of an element such as script or
// style, through its closing tag.
func (l *Lexer) SkipElement(name string) {
	if l.SkipPastFold("</" + name) {
		l.TakeUntil('>')
	}
}

// Next returns the next token. ok is false at EOF.
func (l *Lexer) Next() (tok Token, ok bool) {
	if l.EOF() {
		return Token{}, false
	}
	if l.Peek() == '<' && startsMarkup(l.PeekAt(1)) {
		if strings.HasPrefix(l.src[l.pos:], "<!--") {
			start := l.pos
			l.Advance(4)
			l.SkipPastFold("-->")
			return Token{Kind: TagToken, Raw: l.src[start:l.pos], Class: ClassComment}, true
		}
		return classify(l.TakeUntil('>')), true
	}

	start := l.pos
	l.Advance(1)
	for {
		i := strings.IndexByte(l.src[l.pos:], '<')
		if i < 0 {
			l.pos = len(l.src)
			break
		}
		l.Advance(i)
		if startsMarkup(l.PeekAt(1)) {
			break
		}
		l.Advance(1)
	}
	return Token{Kind: TextToken, Raw: l.src[start:l.pos]}, true
}

// startsMarkup reports whether b may follow '<' in a tag. A '<' followed by
// anything else ("a < b") is character data.
func startsMarkup(b byte) bool {
	return b == '/' || b == '!' || b == '?' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func classify(raw string) Token {
	tok := Token{Kind: TagToken, Raw: raw}

	body := raw[1:]
	if strings.HasPrefix(body, "/") {
		tok.Closing = true
		body = body[1:]
	}
	end := strings.IndexAny(body, " \t\r\n\f/>")
	if end < 0 {
		end = len(body)
	}
	tok.Name = strings.ToLower(body[:end])

	switch tok.Name {
	case "a":
		tok.Class = pick(tok.Closing, ClassAnchorOpen, ClassAnchorClose)
	case "script":
		tok.Class = pick(tok.Closing, ClassScriptOpen, ClassScriptClose)
	case "style":
		tok.Class = pick(tok.Closing, ClassStyleOpen, ClassStyleClose)
	default:
		tok.Class = ClassOther
	}
	return tok
}

// Complete reports whether a tag token reached its closing '>'. Text
// tokens are always complete.
func (t Token) Complete() bool {
	return t.Kind == TextToken || strings.HasSuffix(t.Raw, ">")
}

func pick(closing bool, open, close TagClass) TagClass {
	if closing {
		return close
	}
	return open
}

// indexFold is strings.Index with ASCII case folding; marker is lower case.
func indexFold(s, marker string) int {
	if len(marker) == 0 {
		return 0
	}
	first := marker[0]
	for i := 0; i+len(marker) <= len(s); i++ {
		if lower(s[i]) != first {
			continue
		}
		j := 1
		for j < len(marker) && lower(s[i+j]) == marker[j] {
			j++
		}
		if j == len(marker) {
			return i
		}
	}
	return -1
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
