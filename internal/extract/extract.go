// Package extract turns rendered feed items into normalized records.
package extract

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bookmark-cli/internal/clock"
	"github.com/sells-group/bookmark-cli/internal/feed"
	"github.com/sells-group/bookmark-cli/internal/model"
)

// ErrNotExtractable is returned for items with neither text nor media,
// such as promoted placeholders.
var ErrNotExtractable = eris.New("extract: item has no text or media")

// timestampLayout matches the millisecond ISO-8601 form the feed uses.
const timestampLayout = "2006-01-02T15:04:05.000Z"

const defaultExpandDelay = 100 * time.Millisecond

// Extractor reads records out of feed nodes.
type Extractor struct {
	sel         feed.Selectors
	clock       clock.Clock
	expandDelay time.Duration
	baseURL     string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSelectors overrides the default selectors.
func WithSelectors(sel feed.Selectors) Option {
	return func(e *Extractor) { e.sel = sel }
}

// WithClock sets the clock used for the expand delay and capture time.
func WithClock(c clock.Clock) Option {
	return func(e *Extractor) { e.clock = c }
}

// WithExpandDelay sets how long to wait after expanding truncated text.
func WithExpandDelay(d time.Duration) Option {
	return func(e *Extractor) { e.expandDelay = d }
}

// WithBaseURL sets the origin used to absolutize relative permalinks.
func WithBaseURL(u string) Option {
	return func(e *Extractor) { e.baseURL = u }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		sel:         feed.DefaultSelectors(),
		clock:       clock.Real{},
		expandDelay: defaultExpandDelay,
		baseURL:     "https://x.com",
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Selectors returns the selectors in use.
func (e *Extractor) Selectors() feed.Selectors { return e.sel }

// Extract builds a record from node. Missing sub-elements leave fields
// empty. A record without a permalink comes back with an empty ID and
// must be treated as unidentified. Only context errors and
// ErrNotExtractable are returned.
func (e *Extractor) Extract(ctx context.Context, node feed.Node) (*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := e.expand(ctx, node); err != nil {
		return nil, err
	}

	text, _ := node.Text(e.sel.Text)
	name, handle := splitAuthor(node.Texts(e.sel.UserName))

	ts, ok := node.Attr(e.sel.Time, "datetime")
	if !ok || strings.TrimSpace(ts) == "" {
		ts = e.clock.Now().UTC().Format(timestampLayout)
	}

	href := e.permalink(node)
	media, _ := node.Attr(e.sel.Media, "src")
	avatar, _ := node.Attr(e.sel.Avatar, "src")
	_, bookmarked := node.Text(e.sel.Bookmarked)

	rec := &model.Record{
		ID:                   StatusID(href),
		Text:                 text,
		AuthorName:           name,
		AuthorHandle:         handle,
		AuthorProfilePicture: avatar,
		Timestamp:            ts,
		URL:                  resolve(e.baseURL, href),
		MediaURL:             media,
		Category:             model.CategoryUncategorized,
		IsBookmarked:         bookmarked,
	}

	if !rec.HasContent() {
		return nil, ErrNotExtractable
	}
	return rec, nil
}

// ID returns the post id from node's permalink without expanding or
// reading anything else, or "" when the item has no permalink.
func (e *Extractor) ID(node feed.Node) string {
	return StatusID(e.permalink(node))
}

func (e *Extractor) permalink(node feed.Node) string {
	href, ok := node.Attr(e.sel.Permalink, "href")
	if !ok || !strings.Contains(href, "/status/") {
		href, _ = node.Attr(e.sel.PermalinkFallback, "href")
	}
	return href
}

func (e *Extractor) expand(ctx context.Context, node feed.Node) error {
	if e.sel.ShowMore == "" {
		return nil
	}
	clicked, err := node.Click(ctx, e.sel.ShowMore)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		zap.L().Debug("extract: expand click failed", zap.Error(err))
		return nil
	}
	if !clicked {
		return nil
	}
	return e.clock.Sleep(ctx, e.expandDelay)
}

// StatusID returns the path segment following /status/ in a permalink,
// or "" when there is none.
func StatusID(href string) string {
	_, rest, ok := strings.Cut(href, "/status/")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func resolve(base, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() || base == "" {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// splitAuthor picks the display name and the @handle out of the user name
// spans.
func splitAuthor(spans []string) (name, handle string) {
	for _, s := range spans {
		s = strings.TrimSpace(s)
		switch {
		case s == "" || s == "·":
		case strings.HasPrefix(s, "@"):
			if handle == "" {
				handle = s
			}
		case name == "":
			name = s
		}
	}
	return name, handle
}
