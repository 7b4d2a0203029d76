// Package resilience classifies transient failures and provides bounded
// retry and circuit breaking for calls to the classifier and the backend.
package resilience

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
)

// TransientError marks an error as safe to retry, such as a Gemini 429 or
// 503.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err. statusCode is 0 for transport failures.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// transportPatterns are net/http transport failures as resty and the
// Gemini client surface them, sometimes only as text inside a wrapped
// *url.Error.
var transportPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"server closed idle connection",
	"http2: server sent goaway",
	"tls handshake timeout",
}

// devtoolsPatterns are DevTools protocol errors rod returns when the feed
// re-renders underneath a query. The next query sees the fresh DOM.
var devtoolsPatterns = []string{
	"execution context was destroyed",
	"cannot find context with specified id",
	"node is detached from document",
	"no node with given id found",
}

// IsTransient reports whether err, or anything it wraps, is a
// TransientError, a timed-out request, a dropped connection, or a DOM
// query that raced a re-render.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, patterns := range [][]string{transportPatterns, devtoolsPatterns} {
		for _, p := range patterns {
			if strings.Contains(msg, p) {
				return true
			}
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether a response status is worth
// retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
