// Package store persists extension state, the local bookmark mirror and
// the scrape-run log.
package store

import (
	"context"
	"strings"

	"github.com/sells-group/bookmark-cli/internal/model"
)

// BookmarkFilter specifies criteria for listing mirrored bookmarks.
type BookmarkFilter struct {
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// RunFilter specifies criteria for listing scrape runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// Store defines the persistence interface shared by every context.
// All writes are idempotent replacements.
type Store interface {
	// Persisted state
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, values map[string]string) error
	DeleteState(ctx context.Context, keys ...string) error

	// Local mirror
	AppendBookmarks(ctx context.Context, records []model.Record) (int, error)
	ListBookmarks(ctx context.Context, filter BookmarkFilter) ([]model.Record, error)
	BookmarkIDs(ctx context.Context) ([]string, error)

	// Runs
	CreateRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// recordColumns is the column order used by every bookmark query.
var recordColumns = []string{
	"id", "text", "author_name", "author_handle", "author_profile_picture",
	"posted_at", "url", "media_url", "category", "is_bookmarked",
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBookmark(row scannable) (model.Record, error) {
	var r model.Record
	err := row.Scan(
		&r.ID, &r.Text, &r.AuthorName, &r.AuthorHandle, &r.AuthorProfilePicture,
		&r.Timestamp, &r.URL, &r.MediaURL, &r.Category, &r.IsBookmarked,
	)
	return r, err
}

func recordValues(r model.Record) []any {
	return []any{
		r.ID, r.Text, r.AuthorName, r.AuthorHandle, r.AuthorProfilePicture,
		r.Timestamp, r.URL, r.MediaURL, r.Category, r.IsBookmarked,
	}
}

func selectRecords() string {
	return "SELECT " + strings.Join(recordColumns, ", ") + " FROM bookmarks"
}
