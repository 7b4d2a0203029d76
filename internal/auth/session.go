// Package auth keeps the logged-in identity in persisted state.
package auth

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bookmark-cli/internal/model"
	"github.com/sells-group/bookmark-cli/pkg/backend"
)

// StateStore is the slice of store.Store the session needs.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, values map[string]string) error
	DeleteState(ctx context.Context, keys ...string) error
}

// Credentials is the identity shared by all contexts.
type Credentials struct {
	Token             string `json:"token"`
	UserEmail         string `json:"userEmail"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
}

// Authenticated reports whether a token is present.
func (c Credentials) Authenticated() bool { return c.Token != "" }

// Session reads and writes credentials. Writes replace whole keys, so
// concurrent writers resolve last-writer-wins.
type Session struct {
	state  StateStore
	client backend.Client
}

// NewSession creates a Session. client is only needed for Login.
func NewSession(state StateStore, client backend.Client) *Session {
	return &Session{state: state, client: client}
}

// Token returns the bearer token, falling back to the legacy authToken
// key written by older logins. It returns "" when logged out.
func (s *Session) Token(ctx context.Context) (string, error) {
	for _, key := range []string{model.KeyToken, model.KeyLegacyAuthToken} {
		v, ok, err := s.state.GetState(ctx, key)
		if err != nil {
			return "", eris.Wrap(err, "auth: read token")
		}
		if ok && v != "" {
			return v, nil
		}
	}
	return "", nil
}

// Credentials returns the stored identity.
func (s *Session) Credentials(ctx context.Context) (Credentials, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return Credentials{}, err
	}
	email, _, err := s.state.GetState(ctx, model.KeyUserEmail)
	if err != nil {
		return Credentials{}, eris.Wrap(err, "auth: read email")
	}
	picture, _, err := s.state.GetState(ctx, model.KeyProfilePictureURL)
	if err != nil {
		return Credentials{}, eris.Wrap(err, "auth: read profile picture")
	}
	return Credentials{Token: token, UserEmail: email, ProfilePictureURL: picture}, nil
}

// SetCredentials stores c and marks the account connected. Empty
// optional fields are left untouched.
func (s *Session) SetCredentials(ctx context.Context, c Credentials) error {
	if c.Token == "" {
		return eris.New("auth: token is required")
	}
	values := map[string]string{
		model.KeyToken:              c.Token,
		model.KeyIsTwitterConnected: "true",
	}
	if c.UserEmail != "" {
		values[model.KeyUserEmail] = c.UserEmail
	}
	if c.ProfilePictureURL != "" {
		values[model.KeyProfilePictureURL] = c.ProfilePictureURL
	}
	if err := s.state.SetState(ctx, values); err != nil {
		return eris.Wrap(err, "auth: store credentials")
	}
	zap.L().Info("auth: credentials stored", zap.String("email", c.UserEmail))
	return nil
}

// Clear removes the token, email and profile picture. The Gemini key
// survives a logout.
func (s *Session) Clear(ctx context.Context) error {
	err := s.state.DeleteState(ctx,
		model.KeyToken, model.KeyLegacyAuthToken, model.KeyUserEmail, model.KeyProfilePictureURL)
	if err != nil {
		return eris.Wrap(err, "auth: clear credentials")
	}
	if err := s.state.SetState(ctx, map[string]string{model.KeyIsTwitterConnected: "false"}); err != nil {
		return eris.Wrap(err, "auth: mark disconnected")
	}
	zap.L().Info("auth: credentials cleared")
	return nil
}

// GeminiAPIKey returns the saved Gemini key, or "".
func (s *Session) GeminiAPIKey(ctx context.Context) (string, error) {
	v, _, err := s.state.GetState(ctx, model.KeyGeminiAPIKey)
	return v, eris.Wrap(err, "auth: read gemini key")
}

// SetGeminiAPIKey saves the Gemini key.
func (s *Session) SetGeminiAPIKey(ctx context.Context, key string) error {
	if key == "" {
		return eris.New("auth: gemini key is empty")
	}
	err := s.state.SetState(ctx, map[string]string{model.KeyGeminiAPIKey: key})
	return eris.Wrap(err, "auth: store gemini key")
}

// Login exchanges an identity-provider token for a backend token and
// stores it with email.
func (s *Session) Login(ctx context.Context, idToken, email string) (Credentials, error) {
	if s.client == nil {
		return Credentials{}, eris.New("auth: no backend client configured")
	}
	token, err := s.client.ExchangeToken(ctx, idToken)
	if err != nil {
		return Credentials{}, eris.Wrap(err, "auth: login")
	}
	c := Credentials{Token: token, UserEmail: email}
	if err := s.SetCredentials(ctx, c); err != nil {
		return Credentials{}, err
	}
	return c, nil
}
