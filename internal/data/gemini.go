package data

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// geminiCompleter calls the Gemini generateContent API
type geminiCompleter struct {
	opts []option.ClientOption // extra client options, appended after the API key
}

func (g geminiCompleter) Complete(ctx context.Context, settings *domain.ReplySettings, req *domain.CompletionRequest) (string, error) {
	if strings.TrimSpace(settings.APIKey) == "" {
		return "", domain.ErrMissingAPIKey
	}

	opts := append([]option.ClientOption{option.WithAPIKey(settings.APIKey)}, g.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", &domain.ProviderError{Provider: "gemini", Err: err}
	}
	defer client.Close()

	model := client.GenerativeModel(settings.ModelName)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		return "", &domain.ProviderError{Provider: "gemini", Err: err}
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &domain.ProviderError{Provider: "gemini", Body: "empty response from Gemini"}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", &domain.ProviderError{Provider: "gemini", Body: "empty response from Gemini"}
	}
	return reply, nil
}
