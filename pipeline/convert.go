package pipeline

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/cockroachdb/errors"
	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Output formats.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// ToMarkdown renders the body of doc as Markdown.
func ToMarkdown(doc *Document) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(doc.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to convert document to Markdown")
	}
	return markdown, nil
}

// Render returns doc in the requested format. An empty format means HTML.
func Render(doc *Document, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", FormatHTML:
		return doc.HTML, nil
	case FormatMarkdown, "md":
		return ToMarkdown(doc)
	default:
		return "", errors.Newf("unsupported format %q", format)
	}
}

// extractArticle narrows body to its main article with readability. The
// article title becomes a heading. On failure the body is returned as is.
func extractArticle(body, pageURL string) string {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		zap.S().Warnw("readability skipped, unparsable url", "url", pageURL, "error", err)
		return body
	}

	article, err := readability.FromReader(strings.NewReader(body), parsedURL)
	if err != nil {
		zap.S().Warnw("readability extraction failed, falling back to full body", "url", pageURL, "error", err)
		return body
	}
	if strings.TrimSpace(article.Content) == "" {
		return body
	}

	zap.S().Debugw("readability extracted article",
		"url", pageURL,
		"title", article.Title,
		"length", len(article.Content))

	if article.Title == "" {
		return article.Content
	}
	return "<h1>" + html.EscapeString(article.Title) + "</h1>" + article.Content
}
