package fetcher

import (
	"context"
	"fmt"
	"net"

	"github.com/cockroachdb/errors"
)

// ErrTooManyRedirects is returned through ConnectError when a redirect
// chain exceeds the configured bound.
var ErrTooManyRedirects = errors.New("too many redirects")

// Timeout phases.
const (
	PhaseConnect = "connect"
	PhaseRead    = "read"
)

// URLParseError means the target could not be turned into a request.
type URLParseError struct {
	URL string
	Err error
}

func (e *URLParseError) Error() string {
	return fmt.Sprintf("invalid url %q: %v", e.URL, e.Err)
}

func (e *URLParseError) Unwrap() error { return e.Err }

// ConnectError covers DNS, TCP, TLS and redirect-policy failures.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TimeoutError means the fetch deadline passed, either before the response
// headers arrived (PhaseConnect) or while reading the body (PhaseRead).
type TimeoutError struct {
	URL   string
	Phase string
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out during %s of %s: %v", e.Phase, e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// HTTPStatusError is returned for any non-2xx final response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status from %s: %s", e.URL, e.Status)
}

// DecodeError means the body could not be read as text.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode body of %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Kind returns a short label for err, used in logs and metrics.
func Kind(err error) string {
	var (
		parseErr   *URLParseError
		connErr    *ConnectError
		timeoutErr *TimeoutError
		statusErr  *HTTPStatusError
		decodeErr  *DecodeError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &parseErr):
		return "url_parse"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &connErr):
		return "connect"
	case errors.As(err, &statusErr):
		return "http_status"
	case errors.As(err, &decodeErr):
		return "decode"
	default:
		return "other"
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
