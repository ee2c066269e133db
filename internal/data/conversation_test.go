package data

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// testClock is a settable clock for the store
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func openTestRepos(t *testing.T, clock *testClock) *Repositories {
	t.Helper()
	repos, err := newRepositories(filepath.Join(t.TempDir(), "reply.db"), clock.Now)
	if err != nil {
		t.Fatalf("failed to open repositories: %v", err)
	}
	t.Cleanup(func() { repos.Close() })
	return repos
}

func userMsg(chatID, content string, intent domain.Intent) *domain.Message {
	return &domain.Message{ChatID: chatID, AccountID: "acc", BuyerID: "b1", Role: domain.RoleUser, Content: content, Intent: intent}
}

func TestAppend_StrictlyIncreasingTimestamps(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := &testClock{t: fixed}
	repos := openTestRepos(t, clock)

	var prev time.Time
	for i := 0; i < 5; i++ {
		ts, err := repos.Conversation.Append(ctx, userMsg("c1", "hi", domain.IntentDefault))
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if i > 0 && !ts.After(prev) {
			t.Fatalf("timestamp %d not after previous: %v <= %v", i, ts, prev)
		}
		prev = ts
	}

	// clock steps back
	clock.Set(fixed.Add(-time.Hour))
	ts, err := repos.Conversation.Append(ctx, userMsg("c1", "back", domain.IntentDefault))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if !ts.After(prev) {
		t.Errorf("timestamp went backwards with the clock: %v <= %v", ts, prev)
	}
}

func TestAppend_FillsIDAndTimestamp(t *testing.T) {
	clock := &testClock{t: time.Now()}
	repos := openTestRepos(t, clock)

	msg := userMsg("c1", "你好", domain.IntentDefault)
	ts, err := repos.Conversation.Append(context.Background(), msg)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if msg.ID == "" {
		t.Error("expected message id to be assigned")
	}
	if !domain.SameInstant(msg.CreatedAt, ts) {
		t.Errorf("CreatedAt %v does not match returned timestamp %v", msg.CreatedAt, ts)
	}

	if _, err := repos.Conversation.Append(context.Background(), &domain.Message{ChatID: "c1", AccountID: "acc", Role: "system"}); err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestAppend_MonotonicAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reply.db")
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	repos, err := newRepositories(path, func() time.Time { return fixed })
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	first, _ := repos.Conversation.Append(ctx, userMsg("c1", "a", domain.IntentDefault))
	repos.Close()

	repos, err = newRepositories(path, func() time.Time { return fixed.Add(-time.Minute) })
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer repos.Close()

	second, _ := repos.Conversation.Append(ctx, userMsg("c1", "b", domain.IntentDefault))
	if !second.After(first) {
		t.Errorf("expected timestamp after %v, got %v", first, second)
	}
}

func TestQueryRecent_WindowRoleAndOrder(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := &testClock{t: start}
	repos := openTestRepos(t, clock)
	conv := repos.Conversation

	conv.Append(ctx, userMsg("c1", "old", domain.IntentPrice))
	clock.Set(start.Add(20 * time.Second))
	conv.Append(ctx, userMsg("c1", "mid", domain.IntentPrice))
	conv.Append(ctx, &domain.Message{ChatID: "c1", AccountID: "acc", Role: domain.RoleAssistant, Content: "reply", Intent: domain.IntentPrice})
	clock.Set(start.Add(25 * time.Second))
	conv.Append(ctx, userMsg("c1", "new", domain.IntentDefault))
	conv.Append(ctx, userMsg("c2", "other chat", domain.IntentDefault))

	// 10s window at t=25s excludes "old"
	msgs, err := conv.QueryRecent(ctx, domain.MessageQuery{
		ChatID:    "c1",
		AccountID: "acc",
		Role:      domain.RoleUser,
		Since:     10 * time.Second,
		Order:     domain.OrderAsc,
	})
	if err != nil {
		t.Fatalf("QueryRecent failed: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "mid" || msgs[1].Content != "new" {
		t.Fatalf("unexpected window result: %+v", msgs)
	}

	latest, err := conv.QueryRecent(ctx, domain.MessageQuery{ChatID: "c1", AccountID: "acc", Limit: 2, Order: domain.OrderDesc})
	if err != nil {
		t.Fatalf("QueryRecent failed: %v", err)
	}
	if len(latest) != 2 || latest[0].Content != "new" || latest[1].Content != "reply" {
		t.Errorf("unexpected latest result: %+v", latest)
	}
	if latest[1].Role != domain.RoleAssistant || latest[1].Intent != domain.IntentPrice {
		t.Errorf("role/intent not round-tripped: %+v", latest[1])
	}
}

func TestCountWhere(t *testing.T) {
	ctx := context.Background()
	repos := openTestRepos(t, &testClock{t: time.Now()})
	conv := repos.Conversation

	conv.Append(ctx, userMsg("c1", "便宜点", domain.IntentPrice))
	conv.Append(ctx, userMsg("c1", "怎么用", domain.IntentTech))
	conv.Append(ctx, userMsg("c1", "再便宜点", domain.IntentPrice))
	conv.Append(ctx, &domain.Message{ChatID: "c1", AccountID: "acc", Role: domain.RoleAssistant, Content: "不行", Intent: domain.IntentPrice})
	conv.Append(ctx, userMsg("c2", "便宜点", domain.IntentPrice))
	conv.Append(ctx, &domain.Message{ChatID: "c1", AccountID: "acc", Role: domain.RoleUser, Content: "no intent"})

	count, err := conv.CountWhere(ctx, "c1", "acc", domain.RoleUser, domain.IntentPrice)
	if err != nil {
		t.Fatalf("CountWhere failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2, got %d", count)
	}
}

func TestActivity(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := &testClock{t: start}
	repos := openTestRepos(t, clock)
	conv := repos.Conversation

	conv.Append(ctx, userMsg("c0", "before", domain.IntentDefault))
	clock.Set(start.Add(time.Hour))
	conv.Append(ctx, userMsg("c1", "a", domain.IntentDefault))
	conv.Append(ctx, userMsg("c2", "b", domain.IntentDefault))
	conv.Append(ctx, &domain.Message{ChatID: "c1", AccountID: "acc", Role: domain.RoleAssistant, Content: "r"})
	conv.Append(ctx, &domain.Message{ChatID: "x", AccountID: "acc2", Role: domain.RoleUser, Content: "z"})

	activity, err := conv.Activity(ctx, start.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("Activity failed: %v", err)
	}
	if len(activity) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(activity))
	}
	a := activity[0]
	if a.AccountID != "acc" || a.Inbound != 2 || a.Replies != 1 || a.Chats != 2 {
		t.Errorf("unexpected activity: %+v", a)
	}
}
