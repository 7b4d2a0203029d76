// Package feedtest provides in-memory feed.Node and feed.Snapshot fakes.
package feedtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/sells-group/bookmark-cli/internal/feed"
)

// Item is a fake feed node keyed by selector.
type Item struct {
	mu       sync.Mutex
	texts    map[string][]string
	attrs    map[string]map[string]string
	onClick  map[string]func(*Item)
	clickErr map[string]error
	clicks   []string
}

// NewItem returns an empty item.
func NewItem() *Item {
	return &Item{
		texts:    map[string][]string{},
		attrs:    map[string]map[string]string{},
		onClick:  map[string]func(*Item){},
		clickErr: map[string]error{},
	}
}

// SetTexts sets the texts matched by sel.
func (it *Item) SetTexts(sel string, texts ...string) *Item {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.texts[sel] = texts
	return it
}

// SetAttr sets an attribute on the element matched by sel.
func (it *Item) SetAttr(sel, name, value string) *Item {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.attrs[sel] == nil {
		it.attrs[sel] = map[string]string{}
	}
	it.attrs[sel][name] = value
	return it
}

// Remove deletes everything matched by sel.
func (it *Item) Remove(sel string) *Item {
	it.mu.Lock()
	defer it.mu.Unlock()
	delete(it.texts, sel)
	delete(it.attrs, sel)
	delete(it.onClick, sel)
	return it
}

// OnClick registers a click handler for sel. The element also becomes
// present for Text lookups.
func (it *Item) OnClick(sel string, fn func(*Item)) *Item {
	it.mu.Lock()
	if _, ok := it.texts[sel]; !ok {
		it.texts[sel] = []string{""}
	}
	it.onClick[sel] = fn
	it.mu.Unlock()
	return it
}

// FailClick makes clicks on sel return err.
func (it *Item) FailClick(sel string, err error) *Item {
	it.mu.Lock()
	defer it.mu.Unlock()
	if _, ok := it.texts[sel]; !ok {
		it.texts[sel] = []string{""}
	}
	it.clickErr[sel] = err
	return it
}

// Clicks returns the selectors clicked so far.
func (it *Item) Clicks() []string {
	it.mu.Lock()
	defer it.mu.Unlock()
	return append([]string(nil), it.clicks...)
}

func (it *Item) Text(sel string) (string, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if ts, ok := it.texts[sel]; ok && len(ts) > 0 {
		return ts[0], true
	}
	if _, ok := it.attrs[sel]; ok {
		return "", true
	}
	return "", false
}

func (it *Item) Texts(sel string) []string {
	it.mu.Lock()
	defer it.mu.Unlock()
	return append([]string(nil), it.texts[sel]...)
}

func (it *Item) Attr(sel, name string) (string, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	v, ok := it.attrs[sel][name]
	return v, ok
}

func (it *Item) Click(_ context.Context, sel string) (bool, error) {
	it.mu.Lock()
	_, present := it.texts[sel]
	if !present {
		_, present = it.attrs[sel]
	}
	if !present {
		it.mu.Unlock()
		return false, nil
	}
	it.clicks = append(it.clicks, sel)
	if err := it.clickErr[sel]; err != nil {
		it.mu.Unlock()
		return false, err
	}
	fn := it.onClick[sel]
	it.mu.Unlock()

	if fn != nil {
		fn(it)
	}
	return true, nil
}

// Tweet builds a bookmarked item with a permalink for id using the
// default selectors.
func Tweet(id, text string) *Item {
	sel := feed.DefaultSelectors()
	it := NewItem()
	if text != "" {
		it.SetTexts(sel.Text, text)
	}
	it.SetTexts(sel.UserName, "User "+id, "@user"+id, "·")
	it.SetAttr(sel.Time, "datetime", "2024-05-01T12:00:00.000Z")
	href := fmt.Sprintf("/user%s/status/%s", id, id)
	it.SetAttr(sel.Permalink, "href", href)
	it.SetAttr(sel.PermalinkFallback, "href", href)
	it.SetTexts(sel.Bookmarked, "")
	return it
}

// WithMedia adds a first image.
func (it *Item) WithMedia(src string) *Item {
	return it.SetAttr(feed.DefaultSelectors().Media, "src", src)
}

// WithoutLink removes every permalink.
func (it *Item) WithoutLink() *Item {
	sel := feed.DefaultSelectors()
	return it.Remove(sel.Permalink).Remove(sel.PermalinkFallback)
}

// NotBookmarked removes the bookmarked marker.
func (it *Item) NotBookmarked() *Item {
	return it.Remove(feed.DefaultSelectors().Bookmarked)
}

// Truncated adds a show-more control that replaces the text with full
// when clicked.
func (it *Item) Truncated(full string) *Item {
	sel := feed.DefaultSelectors()
	return it.OnClick(sel.ShowMore, func(i *Item) {
		i.SetTexts(sel.Text, full)
	})
}

// Feed is a fake Snapshot. Pages[i] is what renders after i scrolls; the
// last page repeats once the end is reached. Generate, when set, replaces
// Pages and the extent grows forever.
type Feed struct {
	mu       sync.Mutex
	Pages    [][]feed.Node
	Generate func(pos int) []feed.Node
	Base     string
	ItemsErr error

	// OnScroll runs after every ScrollToBottom with the new position.
	OnScroll func(pos int)

	pos     int
	scrolls int
	queries int
}

// Pages builds a Feed from item pages.
func Pages(pages ...[]*Item) *Feed {
	f := &Feed{Base: "https://x.com"}
	for _, p := range pages {
		nodes := make([]feed.Node, len(p))
		for i, it := range p {
			nodes[i] = it
		}
		f.Pages = append(f.Pages, nodes)
	}
	return f
}

func (f *Feed) Items(ctx context.Context) ([]feed.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.ItemsErr != nil {
		return nil, f.ItemsErr
	}
	return f.page(), nil
}

func (f *Feed) page() []feed.Node {
	if f.Generate != nil {
		return f.Generate(f.pos)
	}
	if len(f.Pages) == 0 {
		return nil
	}
	return f.Pages[f.pos]
}

func (f *Feed) ScrollToBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.scrolls++
	if f.Generate != nil || f.pos < len(f.Pages)-1 {
		f.pos++
	}
	pos := f.pos
	hook := f.OnScroll
	f.mu.Unlock()

	if hook != nil {
		hook(pos)
	}
	return nil
}

func (f *Feed) Extent(ctx context.Context) (feed.Extent, error) {
	if err := ctx.Err(); err != nil {
		return feed.Extent{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return feed.Extent{
		ScrollHeight: int64(f.pos) * 1000,
		ItemCount:    len(f.page()),
	}, nil
}

func (f *Feed) BaseURL() string { return f.Base }

// Scrolls returns how many times the feed was scrolled.
func (f *Feed) Scrolls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scrolls
}

// Queries returns how many times Items was called.
func (f *Feed) Queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}
