package ai

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Completer and ImageGenerator against the OpenAI API
// (or any compatible endpoint).
type OpenAIClient struct {
	client     *openai.Client
	chatModel  string
	imageModel string
}

// NewOpenAIClient creates a capability client for the given models.
func NewOpenAIClient(apiKey, chatModel, imageModel string) *OpenAIClient {
	return &OpenAIClient{
		client:     openai.NewClient(apiKey),
		chatModel:  chatModel,
		imageModel: imageModel,
	}
}

// Complete returns the next assistant utterance for the assembled context.
func (c *OpenAIClient) Complete(ctx context.Context, promptContext string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: promptContext},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: chat completion returned no choices", ErrGenerationFailed)
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage renders one illustration and returns the decoded bytes.
func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Model:          c.imageModel,
		Prompt:         prompt,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: image generation: %v", ErrGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: image response carried no media payload", ErrGenerationFailed)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: decode image payload: %v", ErrGenerationFailed, err)
	}
	return data, nil
}
