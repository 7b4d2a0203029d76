// Package classify assigns a topical category to record text, through a
// remote model or a deterministic keyword fallback.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bookmark-cli/internal/model"
	"github.com/sells-group/bookmark-cli/internal/resilience"
)

// Classifier returns a category label for text.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Func adapts a function to Classifier.
type Func func(ctx context.Context, text string) (string, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, text string) (string, error) { return f(ctx, text) }

// ErrEmptyAnswer is returned when a model answers with blank text.
var ErrEmptyAnswer = eris.New("classify: model returned an empty answer")

// Prompt builds the instruction sent to remote models.
func Prompt(text string) string {
	return fmt.Sprintf(`You are a tweet classifier. Categorize the following tweet into EXACTLY ONE of these categories:
%s.

Return ONLY the category name. Do not explain.

Tweet: %q`, strings.Join(model.RemoteCategories, ", "), text)
}

// normalize trims the model answer and maps it onto the closed set when
// possible. Off-list answers are returned trimmed.
func normalize(answer string) (string, error) {
	label, ok := model.CanonicalCategory(answer)
	if label == "" {
		return "", ErrEmptyAnswer
	}
	if !ok {
		zap.L().Debug("classify: label outside category set", zap.String("label", label))
	}
	return label, nil
}

// OrDefault classifies text and returns fallback on any failure. The
// error is logged, never returned.
func OrDefault(ctx context.Context, c Classifier, text, fallback string) string {
	label, err := c.Classify(ctx, text)
	if err != nil {
		zap.L().Warn("classify: falling back", zap.String("fallback", fallback), zap.Error(err))
		return fallback
	}
	if strings.TrimSpace(label) == "" {
		return fallback
	}
	return label
}

// Breaker stops calling a failing remote classifier until the circuit
// resets; rejected calls fail with resilience.ErrCircuitOpen.
type Breaker struct {
	next Classifier
	cb   *resilience.CircuitBreaker
}

// WithBreaker wraps c.
func WithBreaker(c Classifier, cb *resilience.CircuitBreaker) *Breaker {
	return &Breaker{next: c, cb: cb}
}

// Classify runs the wrapped classifier through the circuit breaker.
func (b *Breaker) Classify(ctx context.Context, text string) (string, error) {
	return resilience.ExecuteVal(ctx, b.cb, func(ctx context.Context) (string, error) {
		return b.next.Classify(ctx, text)
	})
}
