package feed

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Selectors locate the parts of a feed item. The defaults match the
// X/Twitter bookmarks timeline.
type Selectors struct {
	Item              string `yaml:"item"`
	Text              string `yaml:"text"`
	UserName          string `yaml:"user_name"`
	Time              string `yaml:"time"`
	Permalink         string `yaml:"permalink"`
	PermalinkFallback string `yaml:"permalink_fallback"`
	Media             string `yaml:"media"`
	Avatar            string `yaml:"avatar"`
	ShowMore          string `yaml:"show_more"`
	Bookmarked        string `yaml:"bookmarked"`
}

// DefaultSelectors returns the built-in selector set.
func DefaultSelectors() Selectors {
	return Selectors{
		Item:              `article[data-testid="tweet"]`,
		Text:              `[data-testid="tweetText"]`,
		UserName:          `[data-testid="User-Name"] span`,
		Time:              `time`,
		Permalink:         `a:has(time)`,
		PermalinkFallback: `a[href*="/status/"]`,
		Media:             `img[src*="media"]`,
		Avatar:            `[data-testid="Tweet-User-Avatar"] img`,
		ShowMore:          `[data-testid="tweet-text-show-more-link"]`,
		Bookmarked:        `[data-testid="removeBookmark"]`,
	}
}

// LoadSelectors overlays the YAML file at path onto the defaults. An empty
// path returns the defaults.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sel, eris.Wrapf(err, "feed: read selectors %s", path)
	}

	var override Selectors
	if err := yaml.Unmarshal(data, &override); err != nil {
		return sel, eris.Wrapf(err, "feed: parse selectors %s", path)
	}

	merge(&sel.Item, override.Item)
	merge(&sel.Text, override.Text)
	merge(&sel.UserName, override.UserName)
	merge(&sel.Time, override.Time)
	merge(&sel.Permalink, override.Permalink)
	merge(&sel.PermalinkFallback, override.PermalinkFallback)
	merge(&sel.Media, override.Media)
	merge(&sel.Avatar, override.Avatar)
	merge(&sel.ShowMore, override.ShowMore)
	merge(&sel.Bookmarked, override.Bookmarked)

	return sel, nil
}

func merge(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
