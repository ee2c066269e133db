package repo

import (
	"context"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// NotifierRepo delivers operator notifications
type NotifierRepo interface {
	Notify(ctx context.Context, n *domain.Notification) error
}

// ReplySinkRepo delivers produced replies back to the marketplace connector
type ReplySinkRepo interface {
	Deliver(ctx context.Context, msg *domain.Message) error
}
