package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bookmark-cli/internal/auth"
	"github.com/sells-group/bookmark-cli/internal/browser"
	"github.com/sells-group/bookmark-cli/internal/classify"
	"github.com/sells-group/bookmark-cli/internal/dedup"
	"github.com/sells-group/bookmark-cli/internal/extract"
	"github.com/sells-group/bookmark-cli/internal/feed"
	"github.com/sells-group/bookmark-cli/internal/gateway"
	"github.com/sells-group/bookmark-cli/internal/scrape"
	"github.com/sells-group/bookmark-cli/internal/store"
	"github.com/sells-group/bookmark-cli/pkg/backend"
)

// appEnv holds the store, clients and session shared by the commands.
type appEnv struct {
	Store   store.Store
	Session *auth.Session
	Backend backend.Client
	Gateway *gateway.Gateway
	Factory *classify.Factory

	redis *dedup.RedisMirror
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "bookmarks.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates the config for mode, opens and migrates the store and
// builds the backend clients. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var opts []backend.Option
	if cfg.Backend.TimeoutSecs > 0 {
		opts = append(opts, backend.WithTimeout(time.Duration(cfg.Backend.TimeoutSecs)*time.Second))
	}
	client := backend.NewClient(cfg.Backend.BaseURL, opts...)
	session := auth.NewSession(st, client)

	env := &appEnv{
		Store:   st,
		Session: session,
		Backend: client,
		Gateway: gateway.New(client, session),
		Factory: classify.NewFactory(cfg),
	}
	if cfg.Redis.Addr != "" {
		env.redis = dedup.NewRedisMirror(cfg.Redis.Addr, cfg.Redis.Key)
	}
	return env, nil
}

// seenMirror is the durable dedup history: the local mirror, plus Redis
// when configured.
func (e *appEnv) seenMirror() dedup.Mirror {
	local := dedup.NewStoreMirror(e.Store)
	if e.redis == nil {
		return local
	}
	return dedup.Multi{local, e.redis}
}

// geminiKey prefers the saved key over config.
func (e *appEnv) geminiKey(ctx context.Context) (string, error) {
	key, err := e.Session.GeminiAPIKey(ctx)
	if err != nil {
		return "", err
	}
	if key == "" {
		key = cfg.Gemini.APIKey
	}
	return key, nil
}

// classifier builds the configured classifier, falling back to keywords
// when the remote one cannot be built.
func (e *appEnv) classifier(ctx context.Context) (classify.Classifier, error) {
	key, err := e.geminiKey(ctx)
	if err != nil {
		return nil, err
	}
	c, err := e.Factory.New(key)
	if err != nil {
		zap.L().Warn("remote classifier unavailable, using keywords", zap.Error(err))
		return classify.NewKeyword(), nil
	}
	return c, nil
}

func loopConfig(mode string) scrape.Config {
	return scrape.Config{
		MaxCycles:      cfg.Scrape.MaxCycles,
		StallThreshold: cfg.Scrape.StallThreshold,
		ScrollDelay:    time.Duration(cfg.Scrape.ScrollDelayMs) * time.Millisecond,
		SyncAttempts:   cfg.Scrape.SyncAttempts,
		Mode:           mode,
	}
}

func newExtractor(base string) (*extract.Extractor, feed.Selectors, error) {
	sel, err := feed.LoadSelectors(cfg.Scrape.SelectorsFile)
	if err != nil {
		return nil, sel, err
	}
	ext := extract.New(
		extract.WithSelectors(sel),
		extract.WithExpandDelay(time.Duration(cfg.Scrape.ExpandDelayMs)*time.Millisecond),
		extract.WithBaseURL(base),
	)
	return ext, sel, nil
}

// openSnapshot loads saved HTML frames when given, otherwise drives a
// live browser. The returned mode labels the run.
func openSnapshot(ctx context.Context, frames []string) (feed.Snapshot, *extract.Extractor, func(), string, error) {
	base, err := browser.Origin(cfg.Scrape.BookmarksURL)
	if err != nil {
		return nil, nil, nil, "", err
	}
	ext, sel, err := newExtractor(base)
	if err != nil {
		return nil, nil, nil, "", err
	}

	if len(frames) > 0 {
		snap, err := feed.OpenFrames(base, sel.Item, frames...)
		if err != nil {
			return nil, nil, nil, "", err
		}
		return snap, ext, func() {}, "offline", nil
	}

	snap, err := browser.Open(ctx, cfg.Browser, cfg.Scrape.BookmarksURL, sel.Item)
	if err != nil {
		return nil, nil, nil, "", err
	}
	return snap, ext, func() { _ = snap.Close() }, "live", nil
}
