package usecase

import (
	"context"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/repo"
)

// BargainEvaluator derives negotiation state from the conversation log.
// There is no stored counter: a round is a persisted buyer message with price intent,
// so the count never drifts from history but is not atomic with concurrent writers.
type BargainEvaluator struct {
	convRepo repo.ConversationRepo
}

// NewBargainEvaluator creates a bargain evaluator
func NewBargainEvaluator(convRepo repo.ConversationRepo) *BargainEvaluator {
	return &BargainEvaluator{convRepo: convRepo}
}

// CountRounds counts price-intent buyer messages for the chat/account pair
func (e *BargainEvaluator) CountRounds(ctx context.Context, chatID, accountID string) (int, error) {
	return e.convRepo.CountWhere(ctx, chatID, accountID, domain.RoleUser, domain.IntentPrice)
}

// CeilingReached reports whether a price message must be refused.
// A non-positive maximum disables bargaining entirely.
func CeilingReached(count, maxRounds int) bool {
	return count >= maxRounds
}
