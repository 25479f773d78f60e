package services

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-5-mini"

// OpenAIAssistant answers chat messages through OpenAI instead of Gemini.
// Selected with ASSISTANT_PROVIDER=openai.
type OpenAIAssistant struct {
	client *openai.Client
	model  string
}

func NewOpenAIAssistant(apiKey, model string) *OpenAIAssistant {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIAssistant{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// newOpenAIAssistantWithConfig points the assistant at a custom endpoint.
func newOpenAIAssistantWithConfig(cfg openai.ClientConfig, model string) *OpenAIAssistant {
	a := NewOpenAIAssistant("", model)
	a.client = openai.NewClientWithConfig(cfg)
	return a
}

func (a *OpenAIAssistant) GetBotResponse(ctx context.Context, message string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: assistantInstruction,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: message,
			},
		},
	})
	if err != nil {
		return "", classify("chat", fmt.Errorf("openai request failed: %w", err))
	}

	if len(resp.Choices) == 0 {
		return "", classify("chat", fmt.Errorf("no response from openai"))
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", classify("chat", fmt.Errorf("assistant returned an empty reply"))
	}
	return reply, nil
}
