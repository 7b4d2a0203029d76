package openai

import (
	"context"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rotisserie/eris"
)

// ErrNoChoices is returned when a completion carries no choices.
var ErrNoChoices = eris.New("openai: response has no choices")

// Client is the subset of the chat completions API used for
// classification.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is a system + user prompt pair.
type CompletionRequest struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int64
}

// Option configures the SDK client.
type Option = option.RequestOption

type sdkClient struct {
	client sdk.Client
}

// NewClient creates an OpenAI client backed by openai-go.
func NewClient(apiKey string, opts ...Option) Client {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &sdkClient{client: sdk.NewClient(all...)}
}

func (c *sdkClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	var msgs []sdk.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, sdk.SystemMessage(req.System))
	}
	msgs = append(msgs, sdk.UserMessage(req.Prompt))

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(req.Model),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(req.MaxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "openai: chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
