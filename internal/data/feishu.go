package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"golang.org/x/time/rate"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/repo"
)

// FeishuNotifier posts operator notifications to a Feishu group chat.
// Sends are throttled by a token bucket; over-limit notifications are logged and dropped,
// except lost-message alerts which are always sent.
type FeishuNotifier struct {
	chatID  string
	limiter *rate.Limiter
	send    func(ctx context.Context, chatID, text string) error
}

// NewFeishuNotifier creates a notifier allowing perMinute sends per minute
func NewFeishuNotifier(appID, appSecret, chatID string, perMinute int) *FeishuNotifier {
	client := lark.NewClient(appID, appSecret)
	n := newThrottledNotifier(chatID, perMinute)
	n.send = func(ctx context.Context, chatID, text string) error {
		return sendFeishuText(ctx, client, chatID, text)
	}
	return n
}

func newThrottledNotifier(chatID string, perMinute int) *FeishuNotifier {
	if perMinute <= 0 {
		perMinute = 20
	}
	return &FeishuNotifier{
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

// Notify formats and sends a notification
func (n *FeishuNotifier) Notify(ctx context.Context, note *domain.Notification) error {
	if note.Kind != domain.NotifyLostMessage && !n.limiter.Allow() {
		fmt.Printf("[Feishu] Rate limited, dropping %s notification (account=%s chat=%s)\n", note.Kind, note.AccountID, note.ChatID)
		return nil
	}
	return n.send(ctx, n.chatID, formatNotification(note))
}

// SendText sends a plain text message to any chat
func (n *FeishuNotifier) SendText(ctx context.Context, chatID, text string) error {
	return n.send(ctx, chatID, text)
}

func sendFeishuText(ctx context.Context, client *lark.Client, chatID, text string) error {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := client.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}

	fmt.Printf("[Feishu] Message sent to %s\n", chatID)
	return nil
}

func formatNotification(note *domain.Notification) string {
	text := note.Title()
	if note.AccountID != "" {
		text += fmt.Sprintf("\naccount: %s", note.AccountID)
	}
	if note.ChatID != "" {
		text += fmt.Sprintf("\nchat: %s", note.ChatID)
	}
	if note.Text != "" {
		text += "\n" + note.Text
	}
	return text
}

// logNotifier prints notifications when Feishu is not configured
type logNotifier struct{}

func (logNotifier) Notify(ctx context.Context, note *domain.Notification) error {
	fmt.Printf("[Notify] %s\n", formatNotification(note))
	return nil
}

// NewNotifier returns a Feishu notifier when credentials and an alert chat are set,
// otherwise a notifier that only logs
func NewNotifier(appID, appSecret, chatID string, perMinute int) repo.NotifierRepo {
	if appID == "" || appSecret == "" || chatID == "" {
		fmt.Println("[Feishu] Alert chat not configured, notifications go to the log")
		return logNotifier{}
	}
	return NewFeishuNotifier(appID, appSecret, chatID, perMinute)
}
