package dedup

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Mirror is a durable list of ids seen in earlier sessions.
type Mirror interface {
	Load(ctx context.Context) ([]string, error)
	Add(ctx context.Context, ids []string) error
}

// IDLister is the subset of the store used by StoreMirror.
type IDLister interface {
	BookmarkIDs(ctx context.Context) ([]string, error)
}

// StoreMirror reads prior ids from the local bookmark mirror. Add is a
// no-op because the scrape loop appends full records to the store itself.
type StoreMirror struct {
	store IDLister
}

// NewStoreMirror wraps a store.
func NewStoreMirror(s IDLister) *StoreMirror {
	return &StoreMirror{store: s}
}

// Load returns every id in the local mirror.
func (m *StoreMirror) Load(ctx context.Context) ([]string, error) {
	ids, err := m.store.BookmarkIDs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: load store ids")
	}
	return ids, nil
}

// Add does nothing.
func (m *StoreMirror) Add(context.Context, []string) error { return nil }

// Multi fans out to several mirrors. Load reads them concurrently and
// returns the union.
type Multi []Mirror

// Load merges the ids of every mirror.
func (mm Multi) Load(ctx context.Context) ([]string, error) {
	var (
		mu  sync.Mutex
		set = make(map[string]struct{})
		out []string
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range mm {
		g.Go(func() error {
			ids, err := m.Load(gctx)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				if _, ok := set[id]; !ok {
					set[id] = struct{}{}
					out = append(out, id)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Add writes ids to every mirror, stopping at the first error.
func (mm Multi) Add(ctx context.Context, ids []string) error {
	for _, m := range mm {
		if err := m.Add(ctx, ids); err != nil {
			return err
		}
	}
	return nil
}
