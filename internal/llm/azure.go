package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// AzureOpenAIClient is the hosted chat-completion gateway, used only for
// prompt calibration.
type AzureOpenAIClient struct {
	client     *openai.Client
	deployment string
}

func NewAzureOpenAIClient(apiKey, endpoint, apiVersion, deployment string) *AzureOpenAIClient {
	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	if apiVersion != "" {
		cfg.APIVersion = apiVersion
	}
	return &AzureOpenAIClient{
		client:     openai.NewClientWithConfig(cfg),
		deployment: deployment,
	}
}

// Complete sends one completion request consisting of a single system
// message and returns the first choice's content.
func (c *AzureOpenAIClient) Complete(ctx context.Context, systemMessage string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.deployment,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
		},
	})
	if err != nil {
		return "", fmt.Errorf("azure chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("azure chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
