package classify

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/bookmark-cli/pkg/anthropic"
	"github.com/sells-group/bookmark-cli/pkg/gemini"
	"github.com/sells-group/bookmark-cli/pkg/openai"
)

// --- Gemini Mock ---

type mockGeminiClient struct {
	mock.Mock
}

func (m *mockGeminiClient) ListModels(ctx context.Context) ([]gemini.Model, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gemini.Model), args.Error(1)
}

func (m *mockGeminiClient) GenerateContent(ctx context.Context, model string, req gemini.GenerateContentRequest) (*gemini.GenerateContentResponse, error) {
	args := m.Called(ctx, model, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.GenerateContentResponse), args.Error(1)
}

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- OpenAI Mock ---

type mockOpenAIClient struct {
	mock.Mock
}

func (m *mockOpenAIClient) Complete(ctx context.Context, req openai.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func answer(text string) *gemini.GenerateContentResponse {
	return &gemini.GenerateContentResponse{
		Candidates: []gemini.Candidate{{Content: gemini.Content{Parts: []gemini.Part{{Text: text}}}}},
	}
}

func generating(names ...string) []gemini.Model {
	out := make([]gemini.Model, len(names))
	for i, n := range names {
		out[i] = gemini.Model{Name: n, SupportedGenerationMethods: []string{"generateContent"}}
	}
	return out
}
