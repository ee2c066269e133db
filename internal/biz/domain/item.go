package domain

import "time"

// ItemInfo is the listing metadata injected into the reply prompt
type ItemInfo struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id,omitempty"`
	Title         string    `json:"title"`
	Price         string    `json:"price"`
	Description   string    `json:"desc"`
	KnowledgeBase string    `json:"knowledge_base,omitempty"` // Free-text seller notes
	KBUpdatedAt   time.Time `json:"kb_updated_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// IsEmpty reports whether no listing fields were supplied
func (i *ItemInfo) IsEmpty() bool {
	return i == nil || (i.Title == "" && i.Price == "" && i.Description == "" && i.KnowledgeBase == "")
}

// KnowledgeExport is one item in a knowledge base export
type KnowledgeExport struct {
	ItemID        string    `json:"item_id"`
	AccountID     string    `json:"account_id,omitempty"` // Only set when exporting all accounts
	Title         string    `json:"title"`
	KnowledgeBase string    `json:"knowledge_base"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ImportResult reports the outcome of a knowledge base batch import
type ImportResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Missing []string `json:"missing,omitempty"` // Item ids with no item row
}
