package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/repo"
)

// SettingsUsecase handles reply settings management
type SettingsUsecase struct {
	settingsRepo repo.SettingsRepo
}

// NewSettingsUsecase creates a new settings usecase
func NewSettingsUsecase(settingsRepo repo.SettingsRepo) *SettingsUsecase {
	return &SettingsUsecase{settingsRepo: settingsRepo}
}

// Get returns the settings of an account
func (uc *SettingsUsecase) Get(ctx context.Context, accountID string) (*domain.ReplySettings, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	return uc.settingsRepo.Get(ctx, accountID)
}

// List returns all configured accounts
func (uc *SettingsUsecase) List(ctx context.Context) ([]*domain.ReplySettings, error) {
	return uc.settingsRepo.List(ctx)
}

// Update validates and applies a partial update
func (uc *SettingsUsecase) Update(ctx context.Context, accountID string, patch *domain.SettingsPatch) (*domain.ReplySettings, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	if patch == nil || patch.IsEmpty() {
		return uc.settingsRepo.Get(ctx, accountID)
	}
	if err := ValidatePatch(patch); err != nil {
		return nil, err
	}

	settings, err := uc.settingsRepo.Save(ctx, accountID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	fmt.Printf("[Settings] Updated account %s (enabled=%v, model=%s)\n", accountID, settings.Enabled, settings.ModelName)
	return settings, nil
}

// SetCustomPrompt replaces the system prompt override for one intent.
// An empty prompt removes the override.
func (uc *SettingsUsecase) SetCustomPrompt(ctx context.Context, accountID string, intent domain.Intent, prompt string) (*domain.ReplySettings, error) {
	if !intent.Valid() {
		return nil, fmt.Errorf("unknown intent: %s", intent)
	}

	current, err := uc.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	prompts := make(map[string]string, len(current.CustomPrompts)+1)
	for k, v := range current.CustomPrompts {
		prompts[k] = v
	}
	if strings.TrimSpace(prompt) == "" {
		delete(prompts, string(intent))
	} else {
		prompts[string(intent)] = prompt
	}

	return uc.Update(ctx, accountID, &domain.SettingsPatch{CustomPrompts: prompts})
}

// ValidatePatch rejects out-of-range bargain settings
func ValidatePatch(patch *domain.SettingsPatch) error {
	if patch.MaxBargainRounds != nil && *patch.MaxBargainRounds < 0 {
		return fmt.Errorf("max_bargain_rounds must be >= 0")
	}
	if patch.MaxDiscountPercent != nil && (*patch.MaxDiscountPercent < 0 || *patch.MaxDiscountPercent > 100) {
		return fmt.Errorf("max_discount_percent must be between 0 and 100")
	}
	if patch.MaxDiscountAmount != nil && *patch.MaxDiscountAmount < 0 {
		return fmt.Errorf("max_discount_amount must be >= 0")
	}
	return nil
}
