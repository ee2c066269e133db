package repo

import (
	"context"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// SettingsRepo stores per-account reply settings
type SettingsRepo interface {
	// Get returns the account settings, or defaults (disabled) when none are stored
	Get(ctx context.Context, accountID string) (*domain.ReplySettings, error)

	// Save applies a partial update and returns the resulting settings
	Save(ctx context.Context, accountID string, patch *domain.SettingsPatch) (*domain.ReplySettings, error)

	// List returns all stored account settings
	List(ctx context.Context) ([]*domain.ReplySettings, error)
}
