package browser

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bookmark-cli/internal/config"
	"github.com/sells-group/bookmark-cli/internal/feed"
)

var _ feed.Snapshot = (*Snapshot)(nil)

func TestClickFailed(t *testing.T) {
	err := clickFailed(context.Background(), "[data-testid=tweet-text-show-more-link]", context.DeadlineExceeded)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "timed out")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = clickFailed(ctx, "button", context.Canceled)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NotContains(t, err.Error(), "timed out")
}

func TestOrigin(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://x.com/i/bookmarks", want: "https://x.com"},
		{in: "http://localhost:9222/feed?x=1", want: "http://localhost:9222"},
		{in: "/i/bookmarks", wantErr: true},
		{in: "::", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Origin(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Needs a running Chromium: BOOKMARKS_BROWSER_CONTROL_URL=ws://...
func TestSnapshot_Live(t *testing.T) {
	control := os.Getenv("BOOKMARKS_BROWSER_CONTROL_URL")
	if control == "" {
		t.Skip("BOOKMARKS_BROWSER_CONTROL_URL not set")
	}
	page := `data:text/html,<article><p>hello</p><a href="/u/status/1">t</a></article>`

	snap, err := Open(context.Background(), config.BrowserConfig{ControlURL: control}, "https://x.com/", "article")
	require.NoError(t, err)
	defer snap.Close() //nolint:errcheck

	require.NoError(t, snap.page.Navigate(page))
	require.NoError(t, snap.page.WaitLoad())

	items, err := snap.Items(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	txt, ok := items[0].Text("p")
	assert.True(t, ok)
	assert.Equal(t, "hello", txt)
	href, ok := items[0].Attr("a", "href")
	assert.True(t, ok)
	assert.Equal(t, "/u/status/1", href)
}
