package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ErrNoCandidates is returned by Text when the response carries no
// generated content.
var ErrNoCandidates = eris.New("gemini: response has no candidates")

// Client talks to the Gemini REST API. The API key is sent as the key
// query parameter.
type Client interface {
	ListModels(ctx context.Context) ([]Model, error)
	GenerateContent(ctx context.Context, model string, req GenerateContentRequest) (*GenerateContentResponse, error)
}

// Model is one entry of GET /models.
type Model struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName,omitempty"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

// Supports reports whether the model lists method.
func (m Model) Supports(method string) bool {
	for _, s := range m.SupportedGenerationMethods {
		if s == method {
			return true
		}
	}
	return false
}

type listModelsResponse struct {
	Models        []Model `json:"models"`
	NextPageToken string  `json:"nextPageToken"`
}

// GenerateContentRequest is the body of POST /models/{model}:generateContent.
type GenerateContentRequest struct {
	Contents []Content `json:"contents"`
}

// Content is a list of parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a text fragment.
type Part struct {
	Text string `json:"text"`
}

// GenerateContentResponse is the response of generateContent.
type GenerateContentResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is one generated answer.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// Text returns the text of the first part of the first candidate.
func (r *GenerateContentResponse) Text() (string, error) {
	if r == nil || len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoCandidates
	}
	return r.Candidates[0].Content.Parts[0].Text, nil
}

// TextRequest builds a single-part user request.
func TextRequest(prompt string) GenerateContentRequest {
	return GenerateContentRequest{Contents: []Content{{Parts: []Part{{Text: prompt}}}}}
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimiter throttles every request through l.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Gemini API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ListModels(ctx context.Context) ([]Model, error) {
	var all []Model
	pageToken := ""
	for {
		q := url.Values{"key": {c.apiKey}}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page listModelsResponse
		if err := c.do(ctx, http.MethodGet, "/models?"+q.Encode(), nil, &page); err != nil {
			return nil, eris.Wrap(err, "gemini: list models")
		}
		all = append(all, page.Models...)

		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *httpClient) GenerateContent(ctx context.Context, model string, req GenerateContentRequest) (*GenerateContentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: marshal request")
	}

	path := "/models/" + url.PathEscape(model) + ":generateContent?" + url.Values{"key": {c.apiKey}}.Encode()

	var result GenerateContentResponse
	if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, eris.Wrapf(err, "gemini: generate content with %s", model)
	}
	return &result, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "gemini: rate limit wait")
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return eris.Wrap(err, "gemini: create request")
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return eris.Wrap(err, "gemini: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "gemini: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "gemini: unmarshal response")
	}
	return nil
}
