// Package browser drives a Chromium page with rod and exposes it as a
// feed.Snapshot for live scraping.
package browser

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bookmark-cli/internal/config"
	"github.com/sells-group/bookmark-cli/internal/feed"
	"github.com/sells-group/bookmark-cli/internal/resilience"
)

const (
	scrollJS = `() => window.scrollTo(0, document.body.scrollHeight)`
	heightJS = `() => document.body.scrollHeight`
)

func queryRetry() resilience.RetryConfig {
	cfg := resilience.Attempts(3)
	cfg.InitialBackoff = 200 * time.Millisecond
	cfg.OnRetry = resilience.RetryLogger("browser", "query items")
	return cfg
}

// clickTimeout bounds how long a click waits for its target to become
// interactable.
const clickTimeout = 2 * time.Second

// Snapshot is a live bookmarks page.
type Snapshot struct {
	browser *rod.Browser
	page    *rod.Page
	itemSel string
	baseURL string
	cleanup func()
}

// Open connects to (or launches) Chromium, navigates to pageURL and waits
// for the first load.
func Open(ctx context.Context, cfg config.BrowserConfig, pageURL, itemSel string) (*Snapshot, error) {
	base, err := Origin(pageURL)
	if err != nil {
		return nil, err
	}

	controlURL := cfg.ControlURL
	cleanup := func() {}
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless)
		if cfg.UserDataDir != "" {
			l = l.UserDataDir(cfg.UserDataDir)
		}
		controlURL, err = l.Launch()
		if err != nil {
			return nil, eris.Wrap(err, "browser: launch")
		}
		cleanup = l.Cleanup
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		cleanup()
		return nil, eris.Wrap(err, "browser: connect")
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		b.Close() //nolint:errcheck
		cleanup()
		return nil, eris.Wrapf(err, "browser: open %s", pageURL)
	}
	if err := page.WaitLoad(); err != nil {
		b.Close() //nolint:errcheck
		cleanup()
		return nil, eris.Wrapf(err, "browser: load %s", pageURL)
	}

	zap.L().Info("browser: page ready", zap.String("url", pageURL))
	return &Snapshot{browser: b, page: page, itemSel: itemSel, baseURL: base, cleanup: cleanup}, nil
}

// Origin returns the scheme and host of rawURL.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "browser: parse url %q", rawURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", eris.Errorf("browser: url %q is not absolute", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// Items re-queries the rendered feed items. A query that races a
// re-render is retried.
func (s *Snapshot) Items(ctx context.Context) ([]feed.Node, error) {
	els, err := resilience.DoVal(ctx, queryRetry(), func(ctx context.Context) (rod.Elements, error) {
		return s.page.Context(ctx).Elements(s.itemSel)
	})
	if err != nil {
		return nil, eris.Wrap(err, "browser: query items")
	}
	nodes := make([]feed.Node, 0, len(els))
	for _, el := range els {
		nodes = append(nodes, &node{el: el})
	}
	return nodes, nil
}

// ScrollToBottom scrolls the window to the current document height.
func (s *Snapshot) ScrollToBottom(ctx context.Context) error {
	if _, err := s.page.Context(ctx).Eval(scrollJS); err != nil {
		return eris.Wrap(err, "browser: scroll")
	}
	return nil
}

// Extent reports the document height and rendered item count.
func (s *Snapshot) Extent(ctx context.Context) (feed.Extent, error) {
	p := s.page.Context(ctx)
	res, err := p.Eval(heightJS)
	if err != nil {
		return feed.Extent{}, eris.Wrap(err, "browser: read scroll height")
	}
	els, err := p.Elements(s.itemSel)
	if err != nil {
		return feed.Extent{}, eris.Wrap(err, "browser: count items")
	}
	return feed.Extent{ScrollHeight: int64(res.Value.Int()), ItemCount: len(els)}, nil
}

// BaseURL is the page origin.
func (s *Snapshot) BaseURL() string { return s.baseURL }

// Close closes the browser and removes any launched profile.
func (s *Snapshot) Close() error {
	err := s.browser.Close()
	s.cleanup()
	return eris.Wrap(err, "browser: close")
}

type node struct {
	el *rod.Element
}

// first resolves sel under the item; "" is the item itself.
func (n *node) first(sel string) (*rod.Element, bool) {
	if sel == "" {
		return n.el, true
	}
	ok, el, err := n.el.Has(sel)
	if err != nil || !ok {
		return nil, false
	}
	return el, true
}

func (n *node) Text(sel string) (string, bool) {
	el, ok := n.first(sel)
	if !ok {
		return "", false
	}
	txt, err := el.Text()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(txt), true
}

func (n *node) Texts(sel string) []string {
	els := rod.Elements{n.el}
	if sel != "" {
		var err error
		if els, err = n.el.Elements(sel); err != nil {
			return nil
		}
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		if txt, err := el.Text(); err == nil {
			out = append(out, strings.TrimSpace(txt))
		}
	}
	return out
}

func (n *node) Attr(sel, name string) (string, bool) {
	el, ok := n.first(sel)
	if !ok {
		return "", false
	}
	v, err := el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (n *node) Click(ctx context.Context, sel string) (bool, error) {
	el, ok := n.first(sel)
	if !ok {
		return false, nil
	}
	if err := el.Context(ctx).Timeout(clickTimeout).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return true, clickFailed(ctx, sel, err)
	}
	return true, nil
}

// clickFailed wraps a click error. A click that timed out while ctx is
// still live is logged; the caller treats it like any other failed click.
func clickFailed(ctx context.Context, sel string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		zap.L().Debug("browser: click timed out", zap.String("selector", sel), zap.Duration("timeout", clickTimeout))
		return eris.Wrapf(err, "browser: click %s timed out", sel)
	}
	return eris.Wrapf(err, "browser: click %s", sel)
}
