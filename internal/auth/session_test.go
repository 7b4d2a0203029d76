package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bookmark-cli/internal/model"
	"github.com/sells-group/bookmark-cli/internal/store"
	"github.com/sells-group/bookmark-cli/pkg/backend"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) SyncBookmarks(ctx context.Context, token string, batch any) (*backend.SyncResponse, error) {
	args := m.Called(ctx, token, batch)
	resp, _ := args.Get(0).(*backend.SyncResponse)
	return resp, args.Error(1)
}

func (m *mockBackend) Exists(ctx context.Context, token, id string) (bool, error) {
	args := m.Called(ctx, token, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockBackend) ExchangeToken(ctx context.Context, idToken string) (string, error) {
	args := m.Called(ctx, idToken)
	return args.String(0), args.Error(1)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSession_LoggedOut(t *testing.T) {
	s := NewSession(newTestStore(t), nil)
	ctx := context.Background()

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	c, err := s.Credentials(ctx)
	require.NoError(t, err)
	assert.False(t, c.Authenticated())
}

func TestSession_SetCredentials_LastWriterWins(t *testing.T) {
	st := newTestStore(t)
	s := NewSession(st, nil)
	ctx := context.Background()

	require.NoError(t, s.SetCredentials(ctx, Credentials{Token: "a", UserEmail: "a@example.com"}))
	require.NoError(t, s.SetCredentials(ctx, Credentials{Token: "b", UserEmail: "b@example.com", ProfilePictureURL: "https://img/b.png"}))

	c, err := s.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, Credentials{Token: "b", UserEmail: "b@example.com", ProfilePictureURL: "https://img/b.png"}, c)

	connected, _, err := st.GetState(ctx, model.KeyIsTwitterConnected)
	require.NoError(t, err)
	assert.Equal(t, "true", connected)
}

func TestSession_SetCredentials_RequiresToken(t *testing.T) {
	s := NewSession(newTestStore(t), nil)
	err := s.SetCredentials(context.Background(), Credentials{UserEmail: "x@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
}

func TestSession_Token_LegacyFallback(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.SetState(ctx, map[string]string{model.KeyLegacyAuthToken: "legacy"}))

	tok, err := NewSession(st, nil).Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "legacy", tok)

	require.NoError(t, st.SetState(ctx, map[string]string{model.KeyToken: "current"}))
	tok, err = NewSession(st, nil).Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "current", tok)
}

func TestSession_Clear_KeepsGeminiKey(t *testing.T) {
	s := NewSession(newTestStore(t), nil)
	ctx := context.Background()

	require.NoError(t, s.SetGeminiAPIKey(ctx, "gk"))
	require.NoError(t, s.SetCredentials(ctx, Credentials{Token: "t", UserEmail: "e@example.com", ProfilePictureURL: "p"}))
	require.NoError(t, s.Clear(ctx))

	c, err := s.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, Credentials{}, c)

	key, err := s.GeminiAPIKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gk", key)
}

func TestSession_SetGeminiAPIKey_Empty(t *testing.T) {
	s := NewSession(newTestStore(t), nil)
	assert.Error(t, s.SetGeminiAPIKey(context.Background(), ""))
}

func TestSession_Login(t *testing.T) {
	be := &mockBackend{}
	be.On("ExchangeToken", mock.Anything, "id-token").Return("backend-token", nil).Once()
	s := NewSession(newTestStore(t), be)
	ctx := context.Background()

	c, err := s.Login(ctx, "id-token", "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "backend-token", c.Token)

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "backend-token", tok)
	be.AssertExpectations(t)
}

func TestSession_Login_ExchangeFails(t *testing.T) {
	be := &mockBackend{}
	be.On("ExchangeToken", mock.Anything, "id-token").Return("", errors.New("denied")).Once()
	s := NewSession(newTestStore(t), be)

	_, err := s.Login(context.Background(), "id-token", "me@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth: login")

	tok, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestSession_Login_NoClient(t *testing.T) {
	_, err := NewSession(newTestStore(t), nil).Login(context.Background(), "x", "y")
	assert.Error(t, err)
}
