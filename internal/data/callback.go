package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/repo"
)

// webhookSink posts produced replies to the marketplace connector
type webhookSink struct {
	url        string
	httpClient *http.Client
}

type replyPayload struct {
	MsgID     string        `json:"msg_id"`
	ChatID    string        `json:"chat_id"`
	AccountID string        `json:"account_id"`
	BuyerID   string        `json:"buyer_id"`
	ItemID    string        `json:"item_id"`
	Content   string        `json:"content"`
	Intent    domain.Intent `json:"intent"`
	CreatedAt int64         `json:"created_at"` // Unix milliseconds
}

// NewReplySink returns a webhook sink, or a log-only sink when url is empty
func NewReplySink(url string, timeout time.Duration) repo.ReplySinkRepo {
	if url == "" {
		return logSink{}
	}
	return &webhookSink{url: url, httpClient: &http.Client{Timeout: timeout}}
}

func (s *webhookSink) Deliver(ctx context.Context, msg *domain.Message) error {
	payload, err := json.Marshal(replyPayload{
		MsgID:     msg.ID,
		ChatID:    msg.ChatID,
		AccountID: msg.AccountID,
		BuyerID:   msg.BuyerID,
		ItemID:    msg.ItemID,
		Content:   msg.Content,
		Intent:    msg.Intent,
		CreatedAt: msg.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("reply callback returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

type logSink struct{}

func (logSink) Deliver(ctx context.Context, msg *domain.Message) error {
	fmt.Printf("[Inbound] Reply for %s/%s (no callback configured): %s\n", msg.AccountID, msg.ChatID, domain.Preview(msg.Content, 40))
	return nil
}
