package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bookmark-cli/internal/clock"
	"github.com/sells-group/bookmark-cli/internal/config"
	"github.com/sells-group/bookmark-cli/internal/resilience"
	"github.com/sells-group/bookmark-cli/pkg/anthropic"
	"github.com/sells-group/bookmark-cli/pkg/openai"
)

func TestPromptListsCategories(t *testing.T) {
	p := Prompt(`say "hi"`)
	assert.Contains(t, p, "Tech, Design, Crypto, AI, News, Humor, Finance, Sports, Politics, Other.")
	assert.Contains(t, p, "Return ONLY the category name. Do not explain.")
	assert.Contains(t, p, `Tweet: "say \"hi\""`)
}

func TestOrDefault(t *testing.T) {
	ok := Func(func(context.Context, string) (string, error) { return "AI", nil })
	bad := Func(func(context.Context, string) (string, error) { return "", errors.New("down") })
	blank := Func(func(context.Context, string) (string, error) { return " ", nil })

	assert.Equal(t, "AI", OrDefault(context.Background(), ok, "x", "Uncategorized"))
	assert.Equal(t, "Uncategorized", OrDefault(context.Background(), bad, "x", "Uncategorized"))
	assert.Equal(t, "Uncategorized", OrDefault(context.Background(), blank, "x", "Uncategorized"))
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	calls := 0
	failing := Func(func(context.Context, string) (string, error) {
		calls++
		return "", errors.New("timeout")
	})
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		Clock:            clock.NewFake(time.Unix(0, 0)),
	})
	b := WithBreaker(failing, cb)

	for i := 0; i < 2; i++ {
		_, err := b.Classify(context.Background(), "x")
		require.Error(t, err)
	}
	_, err := b.Classify(context.Background(), "x")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestAnthropicClassifier(t *testing.T) {
	mc := &mockAnthropicClient{}
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" && req.MaxTokens == maxAnswerTokens &&
			len(req.Messages) == 1 && req.System == systemPrompt
	})).Return(&anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: "finance"}}}, nil).Once()
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded")).Once()

	a := NewAnthropic(mc, "claude-haiku-4-5-20251001")
	got, err := a.Classify(context.Background(), "rates are up")
	require.NoError(t, err)
	assert.Equal(t, "Finance", got)

	_, err = a.Classify(context.Background(), "again")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify: anthropic")
	mc.AssertExpectations(t)
}

func TestOpenAIClassifier(t *testing.T) {
	mc := &mockOpenAIClient{}
	mc.On("Complete", mock.Anything, mock.MatchedBy(func(req openai.CompletionRequest) bool {
		return req.Model == "gpt-4o-mini" && req.System == systemPrompt
	})).Return("Sports.", nil).Once()
	mc.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("quota")).Once()

	o := NewOpenAI(mc, "gpt-4o-mini")
	got, err := o.Classify(context.Background(), "what a match")
	require.NoError(t, err)
	assert.Equal(t, "Sports", got)

	_, err = o.Classify(context.Background(), "again")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify: openai")
}

func TestFactory(t *testing.T) {
	cfg := &config.Config{}
	cfg.Gemini.RequestsPerMinute = 60

	tests := []struct {
		provider string
		key      string
		mutate   func(c *config.Config)
		wantErr  string
		wantType any
	}{
		{provider: "keyword", wantType: &Keyword{}},
		{provider: "gemini", key: "g", wantType: &Breaker{}},
		{provider: "gemini", wantErr: "no Gemini API key"},
		{provider: "anthropic", wantErr: "anthropic.key is not set"},
		{provider: "anthropic", mutate: func(c *config.Config) { c.Anthropic.Key = "a" }, wantType: &Breaker{}},
		{provider: "openai", wantErr: "openai.key is not set"},
		{provider: "openai", mutate: func(c *config.Config) { c.OpenAI.Key = "o" }, wantType: &Breaker{}},
		{provider: "bayes", wantErr: "unknown provider"},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.wantErr, func(t *testing.T) {
			c := *cfg
			c.Classifier.Provider = tt.provider
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			f := NewFactory(&c)
			assert.Equal(t, tt.provider, f.Provider())

			got, err := f.New(tt.key)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, got)
		})
	}
}
