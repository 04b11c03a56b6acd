package advice

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

type GeminiGenerator struct {
	client    *genai.Client
	modelName string
}

// NewGeminiGenerator creates a Generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, modelName: modelName}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, systemInstruction, userPayload string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(userPayload, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		MaxOutputTokens:   int32(defaultMaxTokens),
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", errors.New("gemini returned empty text")
	}
	return text, nil
}
