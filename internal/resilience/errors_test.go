package resilience

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("server overloaded"), 503)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_ErisWrapped(t *testing.T) {
	inner := NewTransientError(errors.New("rate limited"), 429)
	wrapped := eris.Wrap(inner, "gateway: sync")
	if !IsTransient(wrapped) {
		t.Error("expected eris-wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilAndPlain(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
	if IsTransient(errors.New("invalid api key")) {
		t.Error("plain error should not be transient")
	}
}

func TestIsTransient_Syscalls(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		err := fmt.Errorf("dial tcp: %w", errno)
		if !IsTransient(err) {
			t.Errorf("%v should be transient", errno)
		}
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsTransient(err) {
		t.Error("network timeout should be transient")
	}
}

func TestIsTransient_RequestTimeout(t *testing.T) {
	err := eris.Wrap(&url.Error{Op: "Post", URL: "http://backend/bookmarks/sync", Err: &net.DNSError{IsTimeout: true}}, "backend: sync bookmarks")
	if !IsTransient(err) {
		t.Error("timed-out request should be transient")
	}
}

func TestIsTransient_UnexpectedEOF(t *testing.T) {
	if !IsTransient(fmt.Errorf("read body: %w", io.ErrUnexpectedEOF)) {
		t.Error("truncated response should be transient")
	}
}

func TestIsTransient_Patterns(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{`Post "http://backend/bookmarks/sync": read: connection reset by peer`, true},
		{"http2: server sent GOAWAY and closed the connection", true},
		{"net/http: TLS handshake timeout", true},
		{"{-32000 Execution context was destroyed. }", true},
		{"{-32000 Cannot find context with specified id }", true},
		{"{-32000 Node is detached from document }", true},
		{"element not found", false},
		{"invalid api key", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := IsTransient(errors.New(tt.msg)); got != tt.want {
				t.Errorf("IsTransient(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	tests := map[int]bool{
		200: false,
		400: false,
		401: false,
		404: false,
		408: true,
		429: true,
		500: true,
		502: true,
		503: true,
		504: true,
	}
	for code, want := range tests {
		if got := IsTransientHTTPStatus(code); got != want {
			t.Errorf("IsTransientHTTPStatus(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root")
	te := NewTransientError(inner, 502)
	if !errors.Is(te, inner) {
		t.Error("expected Unwrap to expose inner error")
	}
	if te.Error() != "root" {
		t.Errorf("unexpected message %q", te.Error())
	}
	if te.StatusCode != 502 {
		t.Errorf("unexpected status %d", te.StatusCode)
	}
}
