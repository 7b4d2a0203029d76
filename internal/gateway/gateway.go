// Package gateway submits record batches to the backend and maps each
// outcome onto a typed error.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bookmark-cli/internal/model"
	"github.com/sells-group/bookmark-cli/pkg/backend"
)

// MsgNotAuthenticated is shown when a sync is attempted without a token.
const MsgNotAuthenticated = "User not authenticated. Please login via the Web App."

// CredentialSource yields the current bearer token, or "" when the user
// is not logged in.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// AuthError means no credential is present or the backend refused it.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return MsgNotAuthenticated
	}
	return fmt.Sprintf("%s (%v)", MsgNotAuthenticated, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError is a transport failure before any response arrived.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "gateway: network failure: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("gateway: server rejected batch: status %d", e.StatusCode)
}

// IsNetwork reports whether err is a NetworkError. The scrape loop only
// retries these.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Gateway is the sync gateway.
type Gateway struct {
	client backend.Client
	creds  CredentialSource
}

// New creates a Gateway.
func New(client backend.Client, creds CredentialSource) *Gateway {
	return &Gateway{client: client, creds: creds}
}

// Sync submits batch in one request and returns how many records the
// backend accepted. An empty batch is a no-op.
func (g *Gateway) Sync(ctx context.Context, batch []model.Record) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	token, err := g.token(ctx)
	if err != nil {
		return 0, err
	}

	resp, err := g.client.SyncBookmarks(ctx, token, batch)
	if err != nil {
		return 0, classify(err)
	}

	n := resp.Accepted(len(batch))
	zap.L().Debug("gateway: batch synced", zap.Int("batch", len(batch)), zap.Int("accepted", n))
	return n, nil
}

// Exists reports whether the backend already holds id.
func (g *Gateway) Exists(ctx context.Context, id string) (bool, error) {
	token, err := g.token(ctx)
	if err != nil {
		return false, err
	}
	ok, err := g.client.Exists(ctx, token, id)
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

func (g *Gateway) token(ctx context.Context) (string, error) {
	token, err := g.creds.Token(ctx)
	if err != nil {
		return "", eris.Wrap(err, "gateway: read credentials")
	}
	if token == "" {
		return "", &AuthError{}
	}
	return token, nil
}

func classify(err error) error {
	var se *backend.StatusError
	if !errors.As(err, &se) {
		return &NetworkError{Err: err}
	}
	serverErr := &ServerError{StatusCode: se.StatusCode, Body: se.Body}
	if se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden {
		return &AuthError{Err: serverErr}
	}
	return serverErr
}
