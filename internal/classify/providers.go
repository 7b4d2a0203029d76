package classify

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bookmark-cli/pkg/anthropic"
	"github.com/sells-group/bookmark-cli/pkg/openai"
)

const systemPrompt = "You label social media posts with a single category name."

const maxAnswerTokens = 16

// Anthropic classifies with a Claude model.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates an Anthropic classifier.
func NewAnthropic(client anthropic.Client, model string) *Anthropic {
	return &Anthropic{client: client, model: model}
}

// Classify asks the model for one label.
func (a *Anthropic) Classify(ctx context.Context, text string) (string, error) {
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: maxAnswerTokens,
		System:    systemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: Prompt(text)}},
	})
	if err != nil {
		return "", eris.Wrap(err, "classify: anthropic")
	}
	return normalize(resp.Text())
}

// OpenAI classifies with a chat completion model.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI classifier.
func NewOpenAI(client openai.Client, model string) *OpenAI {
	return &OpenAI{client: client, model: model}
}

// Classify asks the model for one label.
func (o *OpenAI) Classify(ctx context.Context, text string) (string, error) {
	out, err := o.client.Complete(ctx, openai.CompletionRequest{
		Model:     o.model,
		System:    systemPrompt,
		Prompt:    Prompt(text),
		MaxTokens: maxAnswerTokens,
	})
	if err != nil {
		return "", eris.Wrap(err, "classify: openai")
	}
	return normalize(out)
}
