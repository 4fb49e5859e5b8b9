package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"voice-summary/internal/infra"
)

type ChatClient struct {
	client    *openai.Client
	model     string
	maxTokens int
	retry     infra.RetryConfig
}

func NewChatClient(apiKey, baseURL, model string, maxTokens int, retry infra.RetryConfig) *ChatClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &ChatClient{
		client:    newClient(apiKey, baseURL),
		model:     model,
		maxTokens: maxTokens,
		retry:     retry,
	}
}

func (c *ChatClient) Generate(ctx context.Context, prompt string) (string, error) {
	var resp openai.ChatCompletionResponse

	err := infra.WithRetry(ctx, c.retry, func() error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return classify(err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai")
	}

	return resp.Choices[0].Message.Content, nil
}
