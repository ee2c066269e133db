package repo

import (
	"context"
	"time"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// ConversationRepo is the append-only conversation log.
// All reads and writes go through a single store-wide guard.
type ConversationRepo interface {
	// Append writes a message and returns the store-assigned timestamp.
	// Timestamps are strictly increasing in insertion order.
	// msg.ID and msg.CreatedAt are filled in on success.
	Append(ctx context.Context, msg *domain.Message) (time.Time, error)

	// QueryRecent returns messages matching q, ordered by creation time
	QueryRecent(ctx context.Context, q domain.MessageQuery) ([]*domain.Message, error)

	// CountWhere counts messages for a chat/account pair with the given role and intent
	CountWhere(ctx context.Context, chatID, accountID string, role domain.Role, intent domain.Intent) (int, error)

	// Activity summarizes per-account traffic since the given time
	Activity(ctx context.Context, since time.Time) ([]*domain.AccountActivity, error)

	Close() error
}
