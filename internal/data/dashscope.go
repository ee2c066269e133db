package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

const dashscopeEndpoint = "https://dashscope.aliyuncs.com/api/v1/apps/%s/completion"

var dashscopeAppID = regexp.MustCompile(`/apps/([^/?#]+)`)

// dashscopeCompleter calls a DashScope application (agent) completion endpoint
type dashscopeCompleter struct {
	endpoint   string // printf format taking the app id
	httpClient *http.Client
}

type dashscopeRequest struct {
	Input struct {
		Prompt string `json:"prompt"`
	} `json:"input"`
	Parameters struct {
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
	} `json:"parameters"`
}

type dashscopeResponse struct {
	Output struct {
		Text string `json:"text"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newDashscopeCompleter() *dashscopeCompleter {
	return &dashscopeCompleter{endpoint: dashscopeEndpoint, httpClient: &http.Client{}}
}

func (c *dashscopeCompleter) Complete(ctx context.Context, settings *domain.ReplySettings, req *domain.CompletionRequest) (string, error) {
	m := dashscopeAppID.FindStringSubmatch(settings.BaseURL)
	if m == nil {
		return "", &domain.ProviderError{Provider: "dashscope", Body: "app id not found in base_url: " + settings.BaseURL}
	}
	appID := m[1]

	var body dashscopeRequest
	body.Input.Prompt = dashscopePrompt(req.SystemPrompt, req.UserPrompt)
	body.Parameters.MaxTokens = req.MaxTokens
	body.Parameters.Temperature = req.Temperature

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf(c.endpoint, appID), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+settings.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.ProviderError{Provider: "dashscope", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.ProviderError{Provider: "dashscope", Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domain.ProviderError{Provider: "dashscope", Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed dashscopeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &domain.ProviderError{Provider: "dashscope", Status: resp.StatusCode, Body: string(raw), Err: err}
	}
	text := strings.TrimSpace(parsed.Output.Text)
	if text == "" {
		return "", &domain.ProviderError{Provider: "dashscope", Status: resp.StatusCode, Body: "missing output.text"}
	}
	return text, nil
}

// dashscopePrompt folds the system prompt into a single prompt string
func dashscopePrompt(system, user string) string {
	if system == "" {
		return user
	}
	return system + "\n\n用户问题：" + user + "\n\n请直接回答用户的问题："
}
