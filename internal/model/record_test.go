package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalCategory(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		found bool
	}{
		{"Tech", "Tech", true},
		{"  crypto\n", "Crypto", true},
		{"ai.", "AI", true},
		{"\"Politics\"", "Politics", true},
		{"**Humor**", "Humor", true},
		{"Gardening", "Gardening", false},
		{"  Weather  ", "Weather", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := CanonicalCategory(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.found, ok, tt.in)
	}
}

func TestRecordWireNames(t *testing.T) {
	r := Record{
		ID:           "123",
		Text:         "hello",
		AuthorName:   "Ann",
		AuthorHandle: "@ann",
		Timestamp:    "2024-01-02T03:04:05.000Z",
		URL:          "https://x.com/ann/status/123",
		Category:     CategoryUncategorized,
		IsBookmarked: true,
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, k := range []string{"id", "text", "authorName", "authorHandle", "timestamp", "url", "category", "isBookmarked"} {
		assert.Contains(t, m, k)
	}
	assert.NotContains(t, m, "mediaUrl")
	assert.NotContains(t, m, "authorProfilePicture")
}

func TestRecordIdentifiedAndContent(t *testing.T) {
	assert.False(t, Record{}.Identified())
	assert.True(t, Record{ID: "1"}.Identified())
	assert.False(t, Record{Text: "   "}.HasContent())
	assert.True(t, Record{Text: "x"}.HasContent())
	assert.True(t, Record{MediaURL: "https://pbs.twimg.com/media/a.jpg"}.HasContent())
}
