package fetcher

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
	MaxBodyBytes int64 // Zero means unlimited
}

// Result is a fetched page, decoded to UTF-8.
type Result struct {
	RequestURL string
	// FinalURL is the URL the body was served from after redirects. Relative
	// links in Body resolve against it, never against RequestURL.
	FinalURL      string
	StatusCode    int
	ContentType   string
	Charset       string
	Body          string
	OriginalBytes int64 // Size of the body as received, before decoding
}

// Redirected reports whether the final URL differs from the requested one.
func (r *Result) Redirected() bool {
	return r.FinalURL != r.RequestURL
}

// Fetcher retrieves a single page.
type Fetcher interface {
	// Fetch issues a GET for rawURL and follows redirects. Failures are
	// reported as one of the typed errors of this package.
	Fetch(ctx context.Context, rawURL string) (*Result, error)
}

// httpFetcher implements the Fetcher interface using HTTP.
type httpFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

// NewHTTPFetcher creates a new httpFetcher.
func NewHTTPFetcher(cfg *Config) (Fetcher, error) {
	if cfg.Timeout <= 0 {
		return nil, errors.Newf("fetch timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.MaxRedirects < 0 {
		return nil, errors.Newf("max redirects must not be negative, got %d", cfg.MaxRedirects)
	}

	zap.S().Infow("creating new HTTP fetcher",
		"timeout", cfg.Timeout,
		"user_agent", cfg.UserAgent,
		"max_redirects", cfg.MaxRedirects,
		"max_body_bytes", cfg.MaxBodyBytes)

	maxRedirects := cfg.MaxRedirects
	client := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return ErrTooManyRedirects
			}
			zap.S().Debugw("following redirect",
				"from", via[len(via)-1].URL.String(),
				"to", req.URL.String(),
				"hop", len(via))
			return nil
		},
	}

	return &httpFetcher{
		client:       client,
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
	}, nil
}

// Fetch implements Fetcher.
func (f *httpFetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &URLParseError{URL: rawURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &URLParseError{URL: rawURL, Err: errors.Newf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &URLParseError{URL: rawURL, Err: errors.New("missing host")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &URLParseError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{URL: rawURL, Phase: PhaseConnect, Err: err}
		}
		return nil, &ConnectError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	contentType := resp.Header.Get("Content-Type")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zap.S().Debugw("non-success status",
			"url", rawURL,
			"final_url", finalURL,
			"status", resp.StatusCode)
		return nil, &HTTPStatusError{URL: finalURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	raw, err := f.readBody(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{URL: finalURL, Phase: PhaseRead, Err: err}
		}
		if errors.Is(err, errBodyTooLarge) {
			return nil, &DecodeError{URL: finalURL, Err: err}
		}
		return nil, &ConnectError{URL: finalURL, Err: err}
	}

	body, name, err := decode(raw, contentType)
	if err != nil {
		return nil, &DecodeError{URL: finalURL, Err: err}
	}

	zap.S().Debugw("response received",
		"url", rawURL,
		"final_url", finalURL,
		"status", resp.StatusCode,
		"content_type", contentType,
		"charset", name,
		"bytes", len(raw),
		"elapsed", time.Since(start))

	return &Result{
		RequestURL:    rawURL,
		FinalURL:      finalURL,
		StatusCode:    resp.StatusCode,
		ContentType:   contentType,
		Charset:       name,
		Body:          body,
		OriginalBytes: int64(len(raw)),
	}, nil
}

var errBodyTooLarge = errors.New("response body exceeds size limit")

func (f *httpFetcher) readBody(r io.Reader) ([]byte, error) {
	if f.maxBodyBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, f.maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBodyBytes {
		return nil, errors.Wrapf(errBodyTooLarge, "limit %d bytes", f.maxBodyBytes)
	}
	return data, nil
}

// decode converts raw to UTF-8. A charset named in contentType must be
// known; otherwise valid UTF-8 is taken as is and anything else is sniffed.
func decode(raw []byte, contentType string) (string, string, error) {
	if label := charsetParam(contentType); label != "" {
		enc, name := charset.Lookup(label)
		if enc == nil {
			return "", "", errors.Newf("unknown charset %q", label)
		}
		if name == "utf-8" {
			return strings.ToValidUTF8(string(raw), "\uFFFD"), name, nil
		}
		out, err := enc.NewDecoder().Bytes(raw)
		if err != nil {
			return "", "", errors.Wrapf(err, "decode %s", name)
		}
		return string(out), name, nil
	}

	if utf8.Valid(raw) {
		return string(raw), "utf-8", nil
	}
	enc, name, _ := charset.DetermineEncoding(raw, contentType)
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", "", errors.Wrapf(err, "decode %s", name)
	}
	return string(out), name, nil
}

func charsetParam(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}
