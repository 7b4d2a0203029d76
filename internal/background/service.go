// Package background implements the privileged background context: it
// owns the credentials and is the only context that talks to the backend
// and the remote classifier.
package background

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/bookmark-cli/internal/auth"
	"github.com/sells-group/bookmark-cli/internal/channel"
	"github.com/sells-group/bookmark-cli/internal/classify"
	"github.com/sells-group/bookmark-cli/internal/model"
)

// Messages returned to callers verbatim.
const (
	MsgNoAPIKey       = "No API Key"
	MsgAPICheckFailed = "API check failed"
	validationText    = "Test tweet"
)

// BatchSyncer submits batches to the backend.
type BatchSyncer interface {
	Sync(ctx context.Context, batch []model.Record) (int, error)
}

// ClassifierFor builds a remote classifier for an API key.
type ClassifierFor func(apiKey string) classify.Classifier

// Service answers background requests.
type Service struct {
	syncer     BatchSyncer
	session    *auth.Session
	classifier ClassifierFor
}

// New creates a Service.
func New(syncer BatchSyncer, session *auth.Session, classifier ClassifierFor) *Service {
	return &Service{syncer: syncer, session: session, classifier: classifier}
}

// Handler returns the channel handler for the background context. Network
// work runs asynchronously and answers through the responder.
func (s *Service) Handler() channel.Handler {
	return func(ctx context.Context, env channel.Envelope, r *channel.Responder) channel.Result {
		switch m := env.Msg.(type) {
		case channel.SyncBookmarks:
			go func() { r.Respond(s.SyncBookmarks(ctx, m.Bookmarks)) }()
			return channel.Pending()
		case channel.ValidateAPIKey:
			go func() { r.Respond(s.ValidateAPIKey(ctx, m.APIKey)) }()
			return channel.Pending()
		case channel.ClassifyTweet:
			go func() { r.Respond(s.ClassifyTweet(ctx, m.Text)) }()
			return channel.Pending()
		case channel.ExternalLogin:
			return channel.Reply(s.ExternalLogin(ctx, m))
		default:
			zap.L().Debug("background: ignoring message",
				zap.String("from", string(env.From)), zap.String("action", env.Msg.Action()))
			return channel.Reply(channel.Ack{OK: false})
		}
	}
}

// SyncBookmarks forwards batch to the gateway.
func (s *Service) SyncBookmarks(ctx context.Context, batch []model.Record) channel.SyncResult {
	n, err := s.syncer.Sync(ctx, batch)
	if err != nil {
		zap.L().Warn("background: sync failed", zap.Int("batch", len(batch)), zap.Error(err))
		return channel.SyncResult{Success: false, Error: err.Error(), Err: err}
	}
	return channel.SyncResult{Success: true, Count: n}
}

// ValidateAPIKey classifies a fixed text with key; any non-empty answer
// means the key works.
func (s *Service) ValidateAPIKey(ctx context.Context, key string) channel.ValidateResult {
	if strings.TrimSpace(key) == "" {
		return channel.ValidateResult{Valid: false, Error: MsgAPICheckFailed}
	}
	label, err := s.classifier(key).Classify(ctx, validationText)
	if err != nil {
		return channel.ValidateResult{Valid: false, Error: err.Error()}
	}
	if strings.TrimSpace(label) == "" {
		return channel.ValidateResult{Valid: false, Error: MsgAPICheckFailed}
	}
	return channel.ValidateResult{Valid: true}
}

// ClassifyTweet classifies text with the saved Gemini key.
func (s *Service) ClassifyTweet(ctx context.Context, text string) channel.ClassifyResult {
	key, err := s.session.GeminiAPIKey(ctx)
	if err != nil {
		return channel.ClassifyResult{Error: err.Error()}
	}
	if key == "" {
		return channel.ClassifyResult{Error: MsgNoAPIKey}
	}
	label, err := s.classifier(key).Classify(ctx, text)
	if err != nil {
		return channel.ClassifyResult{Error: err.Error()}
	}
	return channel.ClassifyResult{Category: &label}
}

// ExternalLogin stores credentials pushed by the web app.
func (s *Service) ExternalLogin(ctx context.Context, m channel.ExternalLogin) channel.LoginResult {
	if err := s.session.SetCredentials(ctx, auth.Credentials{Token: m.Token, UserEmail: m.Email}); err != nil {
		return channel.LoginResult{Success: false, Error: err.Error()}
	}
	return channel.LoginResult{Success: true}
}
