package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock HTTP Server Setup ---

type mockResponse struct {
	Body        string
	ContentType string
	StatusCode  int
	Location    string
}

func startMockServer(t *testing.T, responses map[string]mockResponse) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("Not Found"))
			return
		}
		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}
		if resp.Location != "" {
			w.Header().Set("Location", resp.Location)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write([]byte(resp.Body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestFetcher(t *testing.T, mutate ...func(*Config)) Fetcher {
	t.Helper()
	cfg := &Config{
		Timeout:      5 * time.Second,
		UserAgent:    "test-agent/1.0",
		MaxRedirects: 10,
		MaxBodyBytes: 1 << 20,
	}
	for _, m := range mutate {
		m(cfg)
	}
	f, err := NewHTTPFetcher(cfg)
	require.NoError(t, err, "Failed to create test fetcher")
	return f
}

func TestNewHTTPFetcher_InvalidConfig(t *testing.T) {
	_, err := NewHTTPFetcher(&Config{Timeout: 0})
	require.Error(t, err)

	_, err = NewHTTPFetcher(&Config{Timeout: time.Second, MaxRedirects: -1})
	require.Error(t, err)
}

func TestHTTPFetcher_Fetch_Success(t *testing.T) {
	server := startMockServer(t, map[string]mockResponse{
		"/page": {
			Body:        "<html><body><h1>Main</h1></body></html>",
			ContentType: "text/html; charset=utf-8",
			StatusCode:  http.StatusOK,
		},
	})
	f := newTestFetcher(t)

	res, err := f.Fetch(context.Background(), server.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/page", res.RequestURL)
	assert.Equal(t, server.URL+"/page", res.FinalURL)
	assert.False(t, res.Redirected())
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "utf-8", res.Charset)
	assert.Contains(t, res.Body, "<h1>Main</h1>")
	assert.EqualValues(t, len("<html><body><h1>Main</h1></body></html>"), res.OriginalBytes)
}

func TestHTTPFetcher_Fetch_UserAgentAndQuery(t *testing.T) {
	var gotUA, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	f := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), server.URL+"/s?q=a+b&x=%2F")
	require.NoError(t, err)
	assert.Equal(t, "test-agent/1.0", gotUA)
	assert.Equal(t, "q=a+b&x=%2F", gotQuery)
}

func TestHTTPFetcher_Fetch_FollowsRedirectToSecondHost(t *testing.T) {
	target := startMockServer(t, map[string]mockResponse{
		"/docs/intro": {Body: "landed", ContentType: "text/plain", StatusCode: http.StatusOK},
	})
	origin := startMockServer(t, map[string]mockResponse{
		"/start": {StatusCode: http.StatusFound, Location: target.URL + "/docs/intro"},
	})

	f := newTestFetcher(t)
	res, err := f.Fetch(context.Background(), origin.URL+"/start")
	require.NoError(t, err)
	assert.Equal(t, origin.URL+"/start", res.RequestURL)
	assert.Equal(t, target.URL+"/docs/intro", res.FinalURL)
	assert.True(t, res.Redirected())
	assert.Equal(t, "landed", res.Body)
}

func TestHTTPFetcher_Fetch_RedirectLimit(t *testing.T) {
	server := startMockServer(t, map[string]mockResponse{
		"/loop": {StatusCode: http.StatusFound, Location: "/loop"},
	})

	f := newTestFetcher(t, func(c *Config) { c.MaxRedirects = 3 })
	_, err := f.Fetch(context.Background(), server.URL+"/loop")
	require.Error(t, err)

	var connErr *ConnectError
	require.True(t, errors.As(err, &connErr))
	assert.True(t, errors.Is(err, ErrTooManyRedirects))
	assert.Equal(t, "connect", Kind(err))
}

func TestHTTPFetcher_Fetch_NonSuccessStatus(t *testing.T) {
	server := startMockServer(t, map[string]mockResponse{})
	f := newTestFetcher(t)

	_, err := f.Fetch(context.Background(), server.URL+"/missing")
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "http_status", Kind(err))
}

func TestHTTPFetcher_Fetch_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	f := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), addr+"/somepath")
	require.Error(t, err)

	var connErr *ConnectError
	require.True(t, errors.As(err, &connErr))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestHTTPFetcher_Fetch_ConnectTimeout(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(done) })

	f := newTestFetcher(t, func(c *Config) { c.Timeout = 100 * time.Millisecond })
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, PhaseConnect, timeoutErr.Phase)
	assert.Equal(t, "timeout", Kind(err))
}

func TestHTTPFetcher_Fetch_ReadTimeout(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body>partial"))
		w.(http.Flusher).Flush()
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(done) })

	f := newTestFetcher(t, func(c *Config) { c.Timeout = 200 * time.Millisecond })
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, PhaseRead, timeoutErr.Phase)
}

func TestHTTPFetcher_Fetch_Charset(t *testing.T) {
	server := startMockServer(t, map[string]mockResponse{
		"/sjis":  {Body: "\x93\xfa\x96\x7b", ContentType: "text/html; charset=Shift_JIS", StatusCode: http.StatusOK},
		"/latin": {Body: "caf\xe9", ContentType: "text/html; charset=iso-8859-1", StatusCode: http.StatusOK},
		"/bogus": {Body: "x", ContentType: "text/html; charset=x-no-such-thing", StatusCode: http.StatusOK},
		"/bare":  {Body: "héllo", ContentType: "text/html", StatusCode: http.StatusOK},
	})
	f := newTestFetcher(t)

	res, err := f.Fetch(context.Background(), server.URL+"/sjis")
	require.NoError(t, err)
	assert.Equal(t, "日本", res.Body)
	assert.Equal(t, "shift_jis", res.Charset)
	assert.EqualValues(t, 4, res.OriginalBytes)

	res, err = f.Fetch(context.Background(), server.URL+"/latin")
	require.NoError(t, err)
	assert.Equal(t, "café", res.Body)

	res, err = f.Fetch(context.Background(), server.URL+"/bare")
	require.NoError(t, err)
	assert.Equal(t, "héllo", res.Body)
	assert.Equal(t, "utf-8", res.Charset)

	_, err = f.Fetch(context.Background(), server.URL+"/bogus")
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "decode", Kind(err))
}

func TestHTTPFetcher_Fetch_BodyTooLarge(t *testing.T) {
	server := startMockServer(t, map[string]mockResponse{
		"/big": {Body: strings.Repeat("a", 2048), ContentType: "text/plain", StatusCode: http.StatusOK},
	})
	f := newTestFetcher(t, func(c *Config) { c.MaxBodyBytes = 1024 })

	_, err := f.Fetch(context.Background(), server.URL+"/big")
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
}

func TestHTTPFetcher_Fetch_InvalidURL(t *testing.T) {
	f := newTestFetcher(t)

	tests := []string{
		"https://exa mple.com/%zz",
		"ftp://example.com/file",
		"https:///path-only",
	}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), raw)
			var parseErr *URLParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
			assert.Equal(t, "url_parse", Kind(err))
		})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ok", Kind(nil))
	assert.Equal(t, "other", Kind(errors.New("boom")))
	assert.Equal(t, "timeout", Kind(&TimeoutError{Phase: PhaseRead, Err: context.DeadlineExceeded}))
}
