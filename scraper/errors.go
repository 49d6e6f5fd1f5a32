package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrNotify wraps a failure to deliver the completion notification. Run
// still returns the crawl report alongside it.
var ErrNotify = errors.New("notify")

// ErrorKind groups fetch failures for logs and the errors_total metric.
type ErrorKind string

const (
	KindUnknown     ErrorKind = "unknown"
	KindTimeout     ErrorKind = "timeout"
	KindConnection  ErrorKind = "connection"
	KindForbidden   ErrorKind = "forbidden"
	KindNotFound    ErrorKind = "not_found"
	KindRateLimited ErrorKind = "rate_limited"
	KindServer      ErrorKind = "server"
	KindOther       ErrorKind = "other"
)

// FetchError is a transport failure for a single page request. Any non-2xx
// status ends up here, as do network failures.
type FetchError struct {
	URL        string
	StatusCode int
	Kind       ErrorKind
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.URL, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func newFetchError(pageURL string, statusCode int, err error) *FetchError {
	if err == nil {
		err = fmt.Errorf("http status %d", statusCode)
	}
	return &FetchError{
		URL:        pageURL,
		StatusCode: statusCode,
		Kind:       classifyError(err, statusCode),
		Err:        err,
	}
}

// classifyError maps a transport error and optional HTTP status to a kind.
// Network conditions win over the status code.
func classifyError(err error, statusCode int) ErrorKind {
	if err == nil && statusCode == 0 {
		return KindUnknown
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}

	switch {
	case statusCode == http.StatusForbidden:
		return KindForbidden
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode >= 500:
		return KindServer
	}
	return KindOther
}

func errorTypeLabel(err error) string {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return string(fetchErr.Kind)
	}
	return string(classifyError(err, 0))
}
