package repo

import (
	"context"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// ItemRepo stores listing metadata and the per-item knowledge base
type ItemRepo interface {
	// Upsert creates or updates the item listing fields (knowledge base untouched)
	Upsert(ctx context.Context, item *domain.ItemInfo) error

	// Get returns the item with its knowledge base, or nil if not found
	Get(ctx context.Context, accountID, itemID string) (*domain.ItemInfo, error)

	// GetKnowledge returns the knowledge base text, empty when absent
	GetKnowledge(ctx context.Context, accountID, itemID string) (string, error)

	// SaveKnowledge replaces the knowledge base; returns false if the item does not exist
	SaveKnowledge(ctx context.Context, accountID, itemID, kb string) (bool, error)

	// ExportKnowledge returns all non-empty knowledge bases, for one account or all when accountID is empty
	ExportKnowledge(ctx context.Context, accountID string) ([]*domain.KnowledgeExport, error)

	// ImportKnowledge writes knowledge bases keyed by item id for one account
	ImportKnowledge(ctx context.Context, accountID string, entries map[string]string) (*domain.ImportResult, error)
}
