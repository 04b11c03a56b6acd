package advice

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const defaultMaxTokens = 1000

// OpenAIGenerator calls the chat completions API once per request, no retries.
type OpenAIGenerator struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewOpenAIGenerator(apiKey, model, baseURL string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIGenerator{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: defaultMaxTokens,
	}, nil
}

func (o *OpenAIGenerator) Generate(ctx context.Context, systemInstruction, userPayload string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: userPayload},
		},
		MaxTokens: o.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
