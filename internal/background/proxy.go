package background

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bookmark-cli/internal/channel"
	"github.com/sells-group/bookmark-cli/internal/model"
)

// Classifier classifies from the scraper context by asking the background
// context, the way the page script does.
type Classifier struct {
	Bus *channel.Bus
}

func (c Classifier) Classify(ctx context.Context, text string) (string, error) {
	res, err := channel.RequestAs[channel.ClassifyResult](ctx, c.Bus, channel.Scraper, channel.Background, channel.ClassifyTweet{Text: text})
	if err != nil {
		return "", err
	}
	if res.Category == nil {
		return "", eris.Errorf("background: classify: %s", res.Error)
	}
	return *res.Category, nil
}

// Syncer syncs from the scraper context through the background context.
// Gateway errors keep their type across the hop.
type Syncer struct {
	Bus *channel.Bus
}

func (s Syncer) Sync(ctx context.Context, batch []model.Record) (int, error) {
	res, err := channel.RequestAs[channel.SyncResult](ctx, s.Bus, channel.Scraper, channel.Background, channel.SyncBookmarks{Bookmarks: batch})
	if err != nil {
		return 0, err
	}
	if !res.Success {
		if res.Err != nil {
			return 0, res.Err
		}
		return 0, eris.Errorf("background: sync: %s", res.Error)
	}
	return res.Count, nil
}
