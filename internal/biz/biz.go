package biz

import (
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Reply        *usecase.ReplyUsecase
	Conversation *usecase.ConversationUsecase
	Settings     *usecase.SettingsUsecase
	Knowledge    *usecase.KnowledgeUsecase
}
