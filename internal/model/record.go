package model

import "strings"

// Category labels. The remote classifier answers from RemoteCategories,
// the local keyword fallback from LocalCategories plus General.
const (
	CategoryTech          = "Tech"
	CategoryDesign        = "Design"
	CategoryCrypto        = "Crypto"
	CategoryAI            = "AI"
	CategoryNews          = "News"
	CategoryHumor         = "Humor"
	CategoryFinance       = "Finance"
	CategorySports        = "Sports"
	CategoryPolitics      = "Politics"
	CategoryOther         = "Other"
	CategoryGeneral       = "General"
	CategoryUncategorized = "Uncategorized"
)

// RemoteCategories is the closed label set offered to remote models.
var RemoteCategories = []string{
	CategoryTech, CategoryDesign, CategoryCrypto, CategoryAI, CategoryNews,
	CategoryHumor, CategoryFinance, CategorySports, CategoryPolitics, CategoryOther,
}

// CanonicalCategory maps a model answer onto RemoteCategories ignoring
// case and surrounding punctuation. It returns the trimmed input and false
// when the answer is outside the set.
func CanonicalCategory(label string) (string, bool) {
	trimmed := strings.TrimSpace(label)
	bare := strings.Trim(trimmed, ".\"'`*")
	for _, c := range RemoteCategories {
		if strings.EqualFold(c, bare) {
			return c, true
		}
	}
	return trimmed, false
}

// Record is one normalized scraped feed item. The JSON field names are the
// backend wire format.
type Record struct {
	ID                   string `json:"id"`
	Text                 string `json:"text"`
	AuthorName           string `json:"authorName"`
	AuthorHandle         string `json:"authorHandle"`
	AuthorProfilePicture string `json:"authorProfilePicture,omitempty"`
	Timestamp            string `json:"timestamp"`
	URL                  string `json:"url"`
	MediaURL             string `json:"mediaUrl,omitempty"`
	Category             string `json:"category"`
	IsBookmarked         bool   `json:"isBookmarked"`
}

// Identified reports whether the record carries a permalink-derived id.
// Unidentified records cannot be deduplicated and are never synced.
func (r Record) Identified() bool {
	return r.ID != ""
}

// HasContent reports whether the record has text or media.
func (r Record) HasContent() bool {
	return strings.TrimSpace(r.Text) != "" || r.MediaURL != ""
}
