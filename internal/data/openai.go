package data

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

const defaultModel = "qwen-plus"

// openAICompleter calls any OpenAI-compatible chat completion endpoint.
// A client is built per call from the account settings.
type openAICompleter struct{}

func (openAICompleter) Complete(ctx context.Context, settings *domain.ReplySettings, req *domain.CompletionRequest) (string, error) {
	if strings.TrimSpace(settings.APIKey) == "" {
		return "", domain.ErrMissingAPIKey
	}

	config := openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		config.BaseURL = settings.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	model := settings.ModelName
	if model == "" {
		model = defaultModel
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &domain.ProviderError{Provider: "openai", Status: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
		}
		return "", &domain.ProviderError{Provider: "openai", Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &domain.ProviderError{Provider: "openai", Body: "no response choices"}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
