package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyword(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"check out this bitcoin chart", "Crypto"},
		{"lol that's hilarious", "Humor"},
		{"plain statement", "General"},
		{"New Python release is out", "Tech"},
		{"my DEV setup", "Tech"},
		{"great UI work", "Design"},
		{"designers love this", "Design"},
		{"ETH gas fees again", "Crypto"},
		{"GPT-5 rumors", "AI"},
		{"training a new model", "AI"},
		{"Breaking: markets fall", "News"},
		{"best memes of the week", "Humor"},
		{"", "General"},
		// first match wins in rule order
		{"a funny python api", "Tech"},
		{"design tokens for the ai team", "Design"},
		// keys of three or more letters match as word prefixes
		{"new devtools for developers", "Tech"},
		{"ethereum merge", "Crypto"},
		{"REST APIs explained", "Tech"},
		// two-letter keys need a whole word
		{"the rain in spain", "General"},
		{"a mountain of paint", "General"},
		{"built a quick gui", "General"},
	}
	k := NewKeyword()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := k.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyword_Deterministic(t *testing.T) {
	k := NewKeyword()
	for i := 0; i < 20; i++ {
		assert.Equal(t, "Crypto", k.Categorize("check out this bitcoin chart"))
	}
}
