package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/repo"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/usecase"
)

const (
	seenTTL     = 5 * time.Minute
	maxSeenMsgs = 10000
)

// InboundMessage is a buyer message handed over by the marketplace connector
type InboundMessage struct {
	MsgID     string           `json:"msg_id"` // Platform message id, used for dedupe
	Message   string           `json:"message"`
	ChatID    string           `json:"chat_id"`
	AccountID string           `json:"account_id"`
	BuyerID   string           `json:"buyer_id"`
	ItemID    string           `json:"item_id"`
	Item      *domain.ItemInfo `json:"item,omitempty"`
	SkipWait  bool             `json:"skip_wait"`
}

// InboundService feeds connector messages into the reply usecase
type InboundService struct {
	replyUC     *usecase.ReplyUsecase
	knowledgeUC *usecase.KnowledgeUsecase
	sink        repo.ReplySinkRepo
	notifier    repo.NotifierRepo

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time

	wg sync.WaitGroup
}

// NewInboundService creates a new inbound service
func NewInboundService(replyUC *usecase.ReplyUsecase, knowledgeUC *usecase.KnowledgeUsecase, sink repo.ReplySinkRepo, notifier repo.NotifierRepo) *InboundService {
	return &InboundService{
		replyUC:     replyUC,
		knowledgeUC: knowledgeUC,
		sink:        sink,
		notifier:    notifier,
		seenMsgs:    make(map[string]time.Time),
	}
}

// Handle runs the reply protocol synchronously.
// ok is false for duplicates and for every no-reply outcome.
func (s *InboundService) Handle(ctx context.Context, msg *InboundMessage) (string, bool) {
	if s.markSeen(msg) {
		fmt.Printf("[Inbound] Duplicate message ignored: %s\n", msg.MsgID)
		return "", false
	}
	return s.replyUC.GenerateReply(ctx, s.toRequest(ctx, msg))
}

// Dispatch runs the reply protocol in the background and delivers any reply to the sink.
// It returns a request id, or accepted=false for duplicates.
func (s *InboundService) Dispatch(ctx context.Context, msg *InboundMessage) (requestID string, accepted bool) {
	if s.markSeen(msg) {
		fmt.Printf("[Inbound] Duplicate message ignored: %s\n", msg.MsgID)
		return "", false
	}

	requestID = uuid.New().String()
	// Outlive the caller's request
	bgCtx := context.WithoutCancel(ctx)
	req := s.toRequest(bgCtx, msg)

	fmt.Printf("[Inbound] [%s] Dispatched %s for %s/%s: %s\n", requestID[:8], msg.MsgID, msg.AccountID, msg.ChatID, domain.Preview(msg.Message, 20))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res := <-s.replyUC.GenerateReplyAsync(bgCtx, req)
		if !res.OK {
			return
		}
		s.deliver(bgCtx, requestID, msg, res.Reply)
	}()
	return requestID, true
}

// Wait blocks until every dispatched message has finished
func (s *InboundService) Wait() {
	s.wg.Wait()
}

func (s *InboundService) deliver(ctx context.Context, requestID string, msg *InboundMessage, reply string) {
	out := &domain.Message{
		ChatID:    msg.ChatID,
		AccountID: msg.AccountID,
		BuyerID:   msg.BuyerID,
		ItemID:    msg.ItemID,
		Role:      domain.RoleAssistant,
		Content:   reply,
		Intent:    s.replyUC.Classify(msg.Message),
		CreatedAt: time.Now(),
	}

	deliverCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := s.sink.Deliver(deliverCtx, out); err != nil {
		fmt.Printf("[Inbound] [%s] Failed to deliver reply: %v\n", requestID[:8], err)
		return
	}

	if s.notifier != nil {
		note := &domain.Notification{
			Kind:      domain.NotifyReply,
			AccountID: msg.AccountID,
			ChatID:    msg.ChatID,
			Text:      fmt.Sprintf("buyer: %s\nreply: %s", domain.Preview(msg.Message, 60), reply),
		}
		if err := s.notifier.Notify(deliverCtx, note); err != nil {
			fmt.Printf("[Inbound] [%s] Failed to mirror reply: %v\n", requestID[:8], err)
		}
	}
}

func (s *InboundService) toRequest(ctx context.Context, msg *InboundMessage) *usecase.ReplyRequest {
	item := msg.Item
	if s.knowledgeUC != nil {
		item = s.knowledgeUC.ResolveItem(ctx, msg.AccountID, msg.ItemID, msg.Item)
	}
	return &usecase.ReplyRequest{
		Message:   msg.Message,
		Item:      item,
		ChatID:    msg.ChatID,
		AccountID: msg.AccountID,
		BuyerID:   msg.BuyerID,
		ItemID:    msg.ItemID,
		SkipWait:  msg.SkipWait,
	}
}

// markSeen records the message and reports whether it was already seen.
// Messages without a platform id are never deduplicated.
func (s *InboundService) markSeen(msg *InboundMessage) bool {
	if msg.MsgID == "" {
		return false
	}
	key := msg.AccountID + "/" + msg.MsgID

	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	now := time.Now()
	cutoff := now.Add(-seenTTL)
	if ts, exists := s.seenMsgs[key]; exists && !ts.Before(cutoff) {
		return true
	}

	// Clean up expired records when marking new messages
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
	if len(s.seenMsgs) >= maxSeenMsgs {
		s.seenMsgs = make(map[string]time.Time)
	}

	s.seenMsgs[key] = now
	return false
}
