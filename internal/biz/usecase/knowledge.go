package usecase

import (
	"context"
	"fmt"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/repo"
)

// KnowledgeUsecase manages item listings and their knowledge bases
type KnowledgeUsecase struct {
	itemRepo repo.ItemRepo
}

// NewKnowledgeUsecase creates a new knowledge usecase
func NewKnowledgeUsecase(itemRepo repo.ItemRepo) *KnowledgeUsecase {
	return &KnowledgeUsecase{itemRepo: itemRepo}
}

// SaveItem creates or updates an item listing
func (uc *KnowledgeUsecase) SaveItem(ctx context.Context, item *domain.ItemInfo) error {
	if item.AccountID == "" || item.ID == "" {
		return fmt.Errorf("account_id and item id are required")
	}
	return uc.itemRepo.Upsert(ctx, item)
}

// GetItem returns an item with its knowledge base
func (uc *KnowledgeUsecase) GetItem(ctx context.Context, accountID, itemID string) (*domain.ItemInfo, error) {
	item, err := uc.itemRepo.Get(ctx, accountID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrItemNotFound
	}
	return item, nil
}

// GetKnowledge returns the knowledge base of an item
func (uc *KnowledgeUsecase) GetKnowledge(ctx context.Context, accountID, itemID string) (string, error) {
	return uc.itemRepo.GetKnowledge(ctx, accountID, itemID)
}

// SaveKnowledge replaces the knowledge base of an existing item
func (uc *KnowledgeUsecase) SaveKnowledge(ctx context.Context, accountID, itemID, kb string) error {
	ok, err := uc.itemRepo.SaveKnowledge(ctx, accountID, itemID, kb)
	if err != nil {
		return fmt.Errorf("failed to save knowledge base: %w", err)
	}
	if !ok {
		return domain.ErrItemNotFound
	}
	fmt.Printf("[Knowledge] Saved %s/%s (%d chars)\n", accountID, itemID, len([]rune(kb)))
	return nil
}

// Export returns knowledge bases for one account, or all accounts when accountID is empty
func (uc *KnowledgeUsecase) Export(ctx context.Context, accountID string) ([]*domain.KnowledgeExport, error) {
	entries, err := uc.itemRepo.ExportKnowledge(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to export knowledge bases: %w", err)
	}
	fmt.Printf("[Knowledge] Exported %d items\n", len(entries))
	return entries, nil
}

// Import writes knowledge bases keyed by item id into one account
func (uc *KnowledgeUsecase) Import(ctx context.Context, accountID string, entries map[string]string) (*domain.ImportResult, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	result, err := uc.itemRepo.ImportKnowledge(ctx, accountID, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to import knowledge bases: %w", err)
	}
	fmt.Printf("[Knowledge] Imported into %s: %d ok, %d failed\n", accountID, result.Success, result.Failed)
	return result, nil
}

// ResolveItem fills missing listing fields from the item store.
// Supplied fields win; a missing item row is not an error.
func (uc *KnowledgeUsecase) ResolveItem(ctx context.Context, accountID, itemID string, supplied *domain.ItemInfo) *domain.ItemInfo {
	if itemID == "" {
		return supplied
	}
	stored, err := uc.itemRepo.Get(ctx, accountID, itemID)
	if err != nil {
		fmt.Printf("[Knowledge] Failed to load item %s/%s: %v\n", accountID, itemID, err)
		return supplied
	}
	if stored == nil {
		return supplied
	}
	if supplied == nil {
		return stored
	}

	merged := *supplied
	if merged.Title == "" {
		merged.Title = stored.Title
	}
	if merged.Price == "" {
		merged.Price = stored.Price
	}
	if merged.Description == "" {
		merged.Description = stored.Description
	}
	if merged.KnowledgeBase == "" {
		merged.KnowledgeBase = stored.KnowledgeBase
	}
	return &merged
}
