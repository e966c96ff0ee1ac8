package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const refinerSystemPrompt = "You are a kindergarten and elementary school teacher. " +
	"Polish the following storybook passage so it reads naturally and warmly, " +
	"soften any difficult words, and output only the story text."

// HTTPRefiner polishes prose through an external chat-completions endpoint.
type HTTPRefiner struct {
	client *resty.Client
}

// NewHTTPRefiner creates a refiner client for the given endpoint.
func NewHTTPRefiner(baseURL, apiKey string) *HTTPRefiner {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json; charset=utf-8")
	return &HTTPRefiner{client: client}
}

type refineRequest struct {
	Messages    []refineMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"maxTokens"`
	TopP        float64         `json:"topP"`
}

type refineMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type refineResponse struct {
	Result struct {
		Message refineMessage `json:"message"`
	} `json:"result"`
}

// Refine rewrites text through the endpoint. Returns an error for the caller
// to fall back on; never mutates the input.
func (r *HTTPRefiner) Refine(ctx context.Context, text string) (string, error) {
	var out refineResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(refineRequest{
			Messages: []refineMessage{
				{Role: "system", Content: refinerSystemPrompt},
				{Role: "user", Content: text},
			},
			Temperature: 0.7,
			MaxTokens:   1024,
			TopP:        0.8,
		}).
		SetResult(&out).
		Post("")
	if err != nil {
		return "", fmt.Errorf("refine request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("refine request: status %s", resp.Status())
	}

	refined := strings.TrimSpace(out.Result.Message.Content)
	if refined == "" {
		return "", fmt.Errorf("refine request: empty result")
	}
	return refined, nil
}

// NopRefiner returns text unchanged. Used when no refiner endpoint is
// configured.
type NopRefiner struct{}

// Refine returns the input as-is.
func (NopRefiner) Refine(_ context.Context, text string) (string, error) {
	return text, nil
}
