package data

import (
	"context"
	"strings"
	"testing"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

func TestFeishuNotifier_Throttle(t *testing.T) {
	var sent []string
	n := newThrottledNotifier("oc_alerts", 2)
	n.send = func(ctx context.Context, chatID, text string) error {
		sent = append(sent, chatID+"|"+text)
		return nil
	}

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		n.Notify(ctx, &domain.Notification{Kind: domain.NotifyBargainCeiling, AccountID: "acc", ChatID: "c1", Text: "rounds 3/3"})
	}
	if len(sent) != 2 {
		t.Errorf("expected 2 sends within the burst, got %d", len(sent))
	}

	// lost-message alerts bypass the limiter
	n.Notify(ctx, &domain.Notification{Kind: domain.NotifyLostMessage, AccountID: "acc", ChatID: "c1", Text: "disk full"})
	if len(sent) != 3 {
		t.Fatalf("expected lost-message alert to be sent, got %d sends", len(sent))
	}
	if !strings.HasPrefix(sent[2], "oc_alerts|[ALERT] buyer message not saved") {
		t.Errorf("unexpected alert: %q", sent[2])
	}
}

func TestFormatNotification(t *testing.T) {
	got := formatNotification(&domain.Notification{Kind: domain.NotifyDigest, Text: "acc: 3 in / 2 out"})
	if got != "[Digest]\nacc: 3 in / 2 out" {
		t.Errorf("unexpected text: %q", got)
	}
}

func TestNewNotifier_FallsBackToLog(t *testing.T) {
	n := NewNotifier("", "", "", 10)
	if _, ok := n.(logNotifier); !ok {
		t.Errorf("expected log notifier, got %T", n)
	}
	if err := n.Notify(context.Background(), &domain.Notification{Kind: domain.NotifyReply}); err != nil {
		t.Errorf("log notifier should not fail: %v", err)
	}
}
