// Package feed defines the FeedSnapshot capability the extractor and the
// scroll-scrape loop run against, independent of any rendering engine.
package feed

import "context"

// Node is one rendered feed item. Selectors are relative to the item; an
// empty selector addresses the item itself.
type Node interface {
	// Text returns the trimmed visible text of the first match.
	Text(sel string) (string, bool)
	// Texts returns the trimmed text of every match, in document order.
	Texts(sel string) []string
	// Attr returns an attribute of the first match.
	Attr(sel, name string) (string, bool)
	// Click activates the first match. It reports false when nothing
	// matched.
	Click(ctx context.Context, sel string) (bool, error)
}

// Extent is the observable size of the feed after a scroll.
type Extent struct {
	ScrollHeight int64
	ItemCount    int
}

// Snapshot is a live view over the host page. Items must be re-queried
// every cycle; nodes are not valid across scrolls.
type Snapshot interface {
	Items(ctx context.Context) ([]Node, error)
	ScrollToBottom(ctx context.Context) error
	Extent(ctx context.Context) (Extent, error)
	// BaseURL resolves relative permalinks.
	BaseURL() string
}
