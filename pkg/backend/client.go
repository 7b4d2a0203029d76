// Package backend is a client for the bookmark backend REST API.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
)

// Client talks to the bookmark backend.
type Client interface {
	// SyncBookmarks posts a batch to /bookmarks/sync with a bearer token.
	SyncBookmarks(ctx context.Context, token string, batch any) (*SyncResponse, error)
	// Exists reports whether the backend already holds bookmark id.
	Exists(ctx context.Context, token, id string) (bool, error)
	// ExchangeToken trades an identity-provider token for a backend token.
	ExchangeToken(ctx context.Context, idToken string) (string, error)
}

// SyncResponse is the optional body of a successful sync. Either field
// may be absent.
type SyncResponse struct {
	Count  *int `json:"count,omitempty"`
	Synced *int `json:"synced,omitempty"`
}

// Accepted returns the number of records the backend reported, or
// fallback when it reported none.
func (r *SyncResponse) Accepted(fallback int) int {
	switch {
	case r == nil:
		return fallback
	case r.Count != nil:
		return *r.Count
	case r.Synced != nil:
		return *r.Synced
	default:
		return fallback
	}
}

type exchangeRequest struct {
	Token string `json:"token"`
}

type exchangeResponse struct {
	Token string `json:"token"`
}

// StatusError is a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*restyClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *restyClient) {
		c.http.SetTimeout(d)
	}
}

type restyClient struct {
	http *resty.Client
}

// NewClient creates a backend client rooted at baseURL, for example
// http://localhost:8080/api.
func NewClient(baseURL string, opts ...Option) Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)

	c := &restyClient{http: rc}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *restyClient) SyncBookmarks(ctx context.Context, token string, batch any) (*SyncResponse, error) {
	var out SyncResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(batch).
		SetResult(&out).
		Post("/bookmarks/sync")
	if err != nil {
		return nil, eris.Wrap(err, "backend: sync bookmarks")
	}
	if resp.IsError() {
		return nil, statusError(resp)
	}
	return &out, nil
}

func (c *restyClient) Exists(ctx context.Context, token, id string) (bool, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get("/bookmarks/" + url.PathEscape(id))
	if err != nil {
		return false, eris.Wrapf(err, "backend: lookup bookmark %s", id)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, statusError(resp)
	}
}

func (c *restyClient) ExchangeToken(ctx context.Context, idToken string) (string, error) {
	var out exchangeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(exchangeRequest{Token: idToken}).
		SetResult(&out).
		Post("/auth/google")
	if err != nil {
		return "", eris.Wrap(err, "backend: exchange token")
	}
	if resp.IsError() {
		return "", statusError(resp)
	}
	if out.Token == "" {
		return "", eris.New("backend: exchange token: response has no token")
	}
	return out.Token, nil
}

func statusError(resp *resty.Response) error {
	return &StatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
}
