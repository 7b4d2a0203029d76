package feed

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// htmlNode is a feed item inside a parsed HTML document.
type htmlNode struct {
	s *goquery.Selection
}

// NewHTMLNode wraps a goquery selection as a Node.
func NewHTMLNode(s *goquery.Selection) Node {
	return &htmlNode{s: s}
}

func (n *htmlNode) find(sel string) *goquery.Selection {
	if sel == "" {
		return n.s
	}
	return n.s.Find(sel)
}

func (n *htmlNode) Text(sel string) (string, bool) {
	m := n.find(sel).First()
	if m.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(m.Text()), true
}

func (n *htmlNode) Texts(sel string) []string {
	var out []string
	n.find(sel).Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

func (n *htmlNode) Attr(sel, name string) (string, bool) {
	m := n.find(sel).First()
	if m.Length() == 0 {
		return "", false
	}
	return m.Attr(name)
}

// Click on a static document cannot run page scripts; it only reports
// whether the control exists.
func (n *htmlNode) Click(_ context.Context, sel string) (bool, error) {
	return n.find(sel).Length() > 0, nil
}

// Frames is an offline Snapshot over saved HTML captures of the feed, one
// per scroll position. ScrollToBottom advances to the next capture and
// stays on the last one, so the loop observes a stall at the end.
type Frames struct {
	docs    []*goquery.Document
	pos     int
	itemSel string
	baseURL string
}

// NewFrames builds a Frames snapshot from parsed documents.
func NewFrames(baseURL, itemSel string, docs ...*goquery.Document) (*Frames, error) {
	if len(docs) == 0 {
		return nil, eris.New("feed: at least one document is required")
	}
	return &Frames{docs: docs, itemSel: itemSel, baseURL: baseURL}, nil
}

// ParseFrames parses each reader as one capture.
func ParseFrames(baseURL, itemSel string, readers ...io.Reader) (*Frames, error) {
	docs := make([]*goquery.Document, 0, len(readers))
	for i, r := range readers {
		doc, err := goquery.NewDocumentFromReader(r)
		if err != nil {
			return nil, eris.Wrapf(err, "feed: parse frame %d", i)
		}
		docs = append(docs, doc)
	}
	return NewFrames(baseURL, itemSel, docs...)
}

// OpenFrames reads captures from files in order.
func OpenFrames(baseURL, itemSel string, paths ...string) (*Frames, error) {
	readers := make([]io.Reader, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, eris.Wrapf(err, "feed: open frame %s", p)
		}
		defer f.Close() //nolint:errcheck
		readers = append(readers, f)
	}
	return ParseFrames(baseURL, itemSel, readers...)
}

func (f *Frames) current() *goquery.Document {
	return f.docs[f.pos]
}

// Items returns the item nodes of the current capture.
func (f *Frames) Items(ctx context.Context) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Node
	f.current().Find(f.itemSel).Each(func(_ int, s *goquery.Selection) {
		out = append(out, NewHTMLNode(s))
	})
	return out, nil
}

// ScrollToBottom moves to the next capture if there is one.
func (f *Frames) ScrollToBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.pos < len(f.docs)-1 {
		f.pos++
	}
	return nil
}

// Extent reports the capture index as the scroll height.
func (f *Frames) Extent(ctx context.Context) (Extent, error) {
	if err := ctx.Err(); err != nil {
		return Extent{}, err
	}
	return Extent{
		ScrollHeight: int64(f.pos),
		ItemCount:    f.current().Find(f.itemSel).Length(),
	}, nil
}

// BaseURL returns the origin used for relative links.
func (f *Frames) BaseURL() string { return f.baseURL }
