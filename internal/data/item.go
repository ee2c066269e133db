package data

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// itemRepo implements the Item repository
type itemRepo struct {
	db *sql.DB
}

func newItemRepo(db *sql.DB) (*itemRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS item_info (
			account_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			knowledge_base TEXT NOT NULL DEFAULT '',
			kb_updated_at INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (account_id, item_id)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Add knowledge base columns (if not exists) - for databases created before the knowledge base
	_, _ = db.Exec(`ALTER TABLE item_info ADD COLUMN knowledge_base TEXT NOT NULL DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE item_info ADD COLUMN kb_updated_at INTEGER NOT NULL DEFAULT 0`)

	return &itemRepo{db: db}, nil
}

// Upsert creates or updates the listing fields
func (r *itemRepo) Upsert(ctx context.Context, item *domain.ItemInfo) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO item_info (account_id, item_id, title, price, description, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, item_id) DO UPDATE SET
			title = excluded.title,
			price = excluded.price,
			description = excluded.description,
			updated_at = excluded.updated_at
	`, item.AccountID, item.ID, item.Title, item.Price, item.Description, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	return nil
}

// Get returns the item, or nil if not found
func (r *itemRepo) Get(ctx context.Context, accountID, itemID string) (*domain.ItemInfo, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT item_id, account_id, title, price, description, knowledge_base, kb_updated_at, updated_at
		FROM item_info
		WHERE account_id = ? AND item_id = ?
	`, accountID, itemID)

	var item domain.ItemInfo
	var kbUpdatedAt, updatedAt int64
	err := row.Scan(&item.ID, &item.AccountID, &item.Title, &item.Price, &item.Description, &item.KnowledgeBase, &kbUpdatedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item: %w", err)
	}

	item.UpdatedAt = time.Unix(updatedAt, 0)
	if kbUpdatedAt > 0 {
		item.KBUpdatedAt = time.Unix(kbUpdatedAt, 0)
	}
	return &item, nil
}

// GetKnowledge returns the knowledge base, empty when the item or KB is absent
func (r *itemRepo) GetKnowledge(ctx context.Context, accountID, itemID string) (string, error) {
	var kb string
	err := r.db.QueryRowContext(ctx, `
		SELECT knowledge_base FROM item_info WHERE account_id = ? AND item_id = ?
	`, accountID, itemID).Scan(&kb)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query knowledge base: %w", err)
	}
	return kb, nil
}

// SaveKnowledge replaces the knowledge base of an existing item
func (r *itemRepo) SaveKnowledge(ctx context.Context, accountID, itemID, kb string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE item_info SET knowledge_base = ?, kb_updated_at = ?
		WHERE account_id = ? AND item_id = ?
	`, kb, time.Now().Unix(), accountID, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to save knowledge base: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to save knowledge base: %w", err)
	}
	return n > 0, nil
}

// ExportKnowledge returns non-empty knowledge bases
func (r *itemRepo) ExportKnowledge(ctx context.Context, accountID string) ([]*domain.KnowledgeExport, error) {
	query := `
		SELECT item_id, account_id, title, knowledge_base, kb_updated_at
		FROM item_info
		WHERE knowledge_base != ''`
	var args []any
	if accountID != "" {
		query += ` AND account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY account_id, item_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to export knowledge bases: %w", err)
	}
	defer rows.Close()

	var result []*domain.KnowledgeExport
	for rows.Next() {
		var e domain.KnowledgeExport
		var owner string
		var kbUpdatedAt int64
		if err := rows.Scan(&e.ItemID, &owner, &e.Title, &e.KnowledgeBase, &kbUpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge base: %w", err)
		}
		if accountID == "" {
			e.AccountID = owner
		}
		e.UpdatedAt = time.Unix(kbUpdatedAt, 0)
		result = append(result, &e)
	}
	return result, rows.Err()
}

// ImportKnowledge writes each entry; items without a row are reported as missing
func (r *itemRepo) ImportKnowledge(ctx context.Context, accountID string, entries map[string]string) (*domain.ImportResult, error) {
	itemIDs := make([]string, 0, len(entries))
	for id := range entries {
		itemIDs = append(itemIDs, id)
	}
	sort.Strings(itemIDs)

	result := &domain.ImportResult{}
	for _, itemID := range itemIDs {
		ok, err := r.SaveKnowledge(ctx, accountID, itemID, entries[itemID])
		if err != nil {
			return nil, err
		}
		if ok {
			result.Success++
		} else {
			result.Failed++
			result.Missing = append(result.Missing, itemID)
		}
	}
	return result, nil
}
