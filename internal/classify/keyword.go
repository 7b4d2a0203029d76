package classify

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/bookmark-cli/internal/model"
)

type keywordRule struct {
	category string
	words    []string
}

// Checked in order; the first rule with a hit wins.
var keywordRules = []keywordRule{
	{model.CategoryTech, []string{"javascript", "python", "code", "dev", "api"}},
	{model.CategoryDesign, []string{"design", "ui", "ux", "color", "font"}},
	{model.CategoryCrypto, []string{"crypto", "btc", "eth", "bitcoin"}},
	{model.CategoryAI, []string{"ai", "gpt", "llm", "model"}},
	{model.CategoryNews, []string{"news", "breaking"}},
	{model.CategoryHumor, []string{"lol", "funny", "meme"}},
}

// minPrefixLen is the shortest keyword also matched as a word prefix
// ("dev" matches "developers"). Two-letter keys must match a whole word
// so "ai" does not fire on "plain".
const minPrefixLen = 3

// Keyword is the local, deterministic classifier.
type Keyword struct{}

// NewKeyword returns a keyword classifier.
func NewKeyword() *Keyword {
	return &Keyword{}
}

// Classify never fails.
func (k *Keyword) Classify(_ context.Context, text string) (string, error) {
	return k.Categorize(text), nil
}

// Categorize returns the first matching category, or General.
func (k *Keyword) Categorize(text string) string {
	// Casers carry state, so each call gets its own.
	folded := cases.Lower(language.Und).String(text)
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, rule := range keywordRules {
		for _, kw := range rule.words {
			if containsWord(words, kw) {
				return rule.category
			}
		}
	}
	return model.CategoryGeneral
}

func containsWord(words []string, kw string) bool {
	for _, w := range words {
		if w == kw || (len(kw) >= minPrefixLen && strings.HasPrefix(w, kw)) {
			return true
		}
	}
	return false
}
