package classify

import (
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/bookmark-cli/internal/config"
	"github.com/sells-group/bookmark-cli/internal/resilience"
	"github.com/sells-group/bookmark-cli/pkg/anthropic"
	"github.com/sells-group/bookmark-cli/pkg/gemini"
	"github.com/sells-group/bookmark-cli/pkg/openai"
)

// Factory builds remote classifiers from configuration. The Gemini key
// is supplied per call because it lives in persisted state, not config.
type Factory struct {
	cfg     *config.Config
	limiter *rate.Limiter
}

// NewFactory creates a Factory. All Gemini classifiers it builds share one
// rate limiter.
func NewFactory(cfg *config.Config) *Factory {
	f := &Factory{cfg: cfg}
	if rpm := cfg.Gemini.RequestsPerMinute; rpm > 0 {
		f.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	return f
}

// Provider returns the configured provider name.
func (f *Factory) Provider() string { return f.cfg.Classifier.Provider }

// Gemini builds a Gemini classifier for apiKey.
func (f *Factory) Gemini(apiKey string) *Gemini {
	opts := []gemini.Option{}
	if f.cfg.Gemini.BaseURL != "" {
		opts = append(opts, gemini.WithBaseURL(f.cfg.Gemini.BaseURL))
	}
	if f.limiter != nil {
		opts = append(opts, gemini.WithRateLimiter(f.limiter))
	}
	return NewGemini(gemini.NewClient(apiKey, opts...),
		WithPreferredModels(f.cfg.Gemini.PreferredModels),
		WithDefaultModel(f.cfg.Gemini.DefaultModel),
	)
}

// New builds the configured classifier. geminiKey is only used by the
// gemini provider. Remote providers are wrapped in a circuit breaker.
func (f *Factory) New(geminiKey string) (Classifier, error) {
	var c Classifier
	switch f.cfg.Classifier.Provider {
	case "keyword":
		return NewKeyword(), nil
	case "", "gemini":
		if geminiKey == "" {
			return nil, eris.New("classify: no Gemini API key")
		}
		c = f.Gemini(geminiKey)
	case "anthropic":
		if f.cfg.Anthropic.Key == "" {
			return nil, eris.New("classify: anthropic.key is not set")
		}
		c = NewAnthropic(anthropic.NewClient(f.cfg.Anthropic.Key), f.cfg.Anthropic.Model)
	case "openai":
		if f.cfg.OpenAI.Key == "" {
			return nil, eris.New("classify: openai.key is not set")
		}
		c = NewOpenAI(openai.NewClient(f.cfg.OpenAI.Key), f.cfg.OpenAI.Model)
	default:
		return nil, eris.Errorf("classify: unknown provider %q", f.cfg.Classifier.Provider)
	}

	cb := resilience.NewCircuitBreaker(resilience.FromCircuitConfig(
		f.cfg.Classifier.BreakerThreshold, f.cfg.Classifier.BreakerResetSecs))
	return WithBreaker(c, cb), nil
}
