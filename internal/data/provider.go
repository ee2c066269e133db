package data

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// ProviderKind names a completion backend
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderGemini    ProviderKind = "gemini"
	ProviderDashScope ProviderKind = "dashscope"
)

var dashscopeModelNames = []string{"custom", "自定义", "dashscope", "qwen-custom"}

// SelectProvider picks the backend for an account's settings
func SelectProvider(settings *domain.ReplySettings) ProviderKind {
	model := strings.ToLower(strings.TrimSpace(settings.ModelName))
	if slices.Contains(dashscopeModelNames, model) && strings.Contains(settings.BaseURL, "dashscope.aliyuncs.com") {
		return ProviderDashScope
	}
	if strings.Contains(model, "gemini") {
		return ProviderGemini
	}
	return ProviderOpenAI
}

type completer interface {
	Complete(ctx context.Context, settings *domain.ReplySettings, req *domain.CompletionRequest) (string, error)
}

// ProviderRouter implements repo.CompletionRepo by dispatching on the account settings
type ProviderRouter struct {
	providers map[ProviderKind]completer
	timeout   time.Duration
}

// NewProviderRouter creates a router; every call is bounded by timeout
func NewProviderRouter(timeout time.Duration) *ProviderRouter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ProviderRouter{
		providers: map[ProviderKind]completer{
			ProviderOpenAI:    openAICompleter{},
			ProviderGemini:    geminiCompleter{},
			ProviderDashScope: newDashscopeCompleter(),
		},
		timeout: timeout,
	}
}

// Complete runs one stateless completion call
func (r *ProviderRouter) Complete(ctx context.Context, settings *domain.ReplySettings, req *domain.CompletionRequest) (string, error) {
	kind := SelectProvider(settings)
	fmt.Printf("[Provider] Using %s (account=%s, model=%s, key=%s)\n", kind, settings.AccountID, settings.ModelName, settings.MaskedAPIKey())

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	reply, err := r.providers[kind].Complete(ctx, settings, req)
	if err != nil {
		fmt.Printf("[Provider] %s failed after %v: %v\n", kind, time.Since(start).Round(time.Millisecond), err)
		return "", err
	}
	fmt.Printf("[Provider] %s replied in %v\n", kind, time.Since(start).Round(time.Millisecond))
	return reply, nil
}
