package repo

import (
	"context"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// CompletionRepo turns a prompt pair into reply text.
// The provider is selected from the account settings.
type CompletionRepo interface {
	Complete(ctx context.Context, settings *domain.ReplySettings, req *domain.CompletionRequest) (string, error)
}
