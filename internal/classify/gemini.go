package classify

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bookmark-cli/internal/resilience"
	"github.com/sells-group/bookmark-cli/pkg/gemini"
)

// Defaults for model selection.
var (
	DefaultPreferredModels = []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-1.0-pro", "gemini-pro"}
	DefaultGeminiModel     = "gemini-1.5-flash"
)

const generateMethod = "generateContent"

// Gemini classifies via the Gemini generateContent API.
type Gemini struct {
	client       gemini.Client
	preferred    []string
	defaultModel string

	mu    sync.Mutex
	model string
}

// GeminiOption configures a Gemini classifier.
type GeminiOption func(*Gemini)

// WithPreferredModels sets the selection preference order.
func WithPreferredModels(models []string) GeminiOption {
	return func(g *Gemini) {
		if len(models) > 0 {
			g.preferred = models
		}
	}
}

// WithDefaultModel sets the model used when listing fails.
func WithDefaultModel(name string) GeminiOption {
	return func(g *Gemini) {
		if name != "" {
			g.defaultModel = name
		}
	}
}

// NewGemini creates a Gemini classifier.
func NewGemini(client gemini.Client, opts ...GeminiOption) *Gemini {
	g := &Gemini{
		client:       client,
		preferred:    DefaultPreferredModels,
		defaultModel: DefaultGeminiModel,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// SelectModel picks the first preferred model that supports content
// generation, else the first one that does. A failed listing, or a
// listing with no usable model, yields the default model and is retried
// on the next call; a successful pick is kept.
func (g *Gemini) SelectModel(ctx context.Context) string {
	g.mu.Lock()
	cached := g.model
	g.mu.Unlock()
	if cached != "" {
		return cached
	}

	models, err := g.client.ListModels(ctx)
	if err != nil {
		zap.L().Warn("classify: list models failed, using default",
			zap.String("model", g.defaultModel), zap.Error(err))
		return g.defaultModel
	}

	picked := pickModel(models, g.preferred)
	if picked == "" {
		zap.L().Warn("classify: no model supports generateContent, using default",
			zap.String("model", g.defaultModel))
		return g.defaultModel
	}

	g.mu.Lock()
	g.model = picked
	g.mu.Unlock()
	zap.L().Debug("classify: selected model", zap.String("model", picked))
	return picked
}

func pickModel(models []gemini.Model, preferred []string) string {
	var valid []string
	for _, m := range models {
		if m.Supports(generateMethod) {
			valid = append(valid, strings.TrimPrefix(m.Name, "models/"))
		}
	}
	for _, p := range preferred {
		p = strings.TrimPrefix(p, "models/")
		for _, v := range valid {
			if v == p {
				return v
			}
		}
	}
	if len(valid) > 0 {
		return valid[0]
	}
	return ""
}

// Classify sends the prompt to the selected model.
func (g *Gemini) Classify(ctx context.Context, text string) (string, error) {
	m := g.SelectModel(ctx)

	resp, err := g.client.GenerateContent(ctx, m, gemini.TextRequest(Prompt(text)))
	if err != nil {
		var se *gemini.StatusError
		if errors.As(err, &se) && resilience.IsTransientHTTPStatus(se.StatusCode) {
			err = resilience.NewTransientError(err, se.StatusCode)
		}
		return "", eris.Wrap(err, "classify: gemini")
	}

	answer, err := resp.Text()
	if err != nil {
		return "", eris.Wrap(err, "classify: gemini")
	}
	return normalize(answer)
}
