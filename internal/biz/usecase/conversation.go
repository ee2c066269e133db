package usecase

import (
	"context"
	"fmt"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/repo"
)

// ConversationUsecase serves read-side queries over the conversation log
type ConversationUsecase struct {
	convRepo repo.ConversationRepo
	bargain  *BargainEvaluator
}

// NewConversationUsecase creates a new conversation usecase
func NewConversationUsecase(convRepo repo.ConversationRepo) *ConversationUsecase {
	return &ConversationUsecase{
		convRepo: convRepo,
		bargain:  NewBargainEvaluator(convRepo),
	}
}

// History returns the most recent messages of a chat, oldest first
func (uc *ConversationUsecase) History(ctx context.Context, chatID, accountID string, limit int) ([]*domain.Message, error) {
	if chatID == "" || accountID == "" {
		return nil, fmt.Errorf("chat_id and account_id are required")
	}
	if limit <= 0 {
		limit = 20
	}

	msgs, err := uc.convRepo.QueryRecent(ctx, domain.MessageQuery{
		ChatID:    chatID,
		AccountID: accountID,
		Limit:     limit,
		Order:     domain.OrderDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// BargainCount returns the live bargain round count for a chat
func (uc *ConversationUsecase) BargainCount(ctx context.Context, chatID, accountID string) (int, error) {
	if chatID == "" || accountID == "" {
		return 0, fmt.Errorf("chat_id and account_id are required")
	}
	return uc.bargain.CountRounds(ctx, chatID, accountID)
}
