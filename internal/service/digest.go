package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/repo"
)

// DigestRunner periodically posts per-account activity to the notifier
type DigestRunner struct {
	convRepo repo.ConversationRepo
	notifier repo.NotifierRepo

	interval time.Duration
	lastRun  time.Time
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewDigestRunner creates a new digest runner
func NewDigestRunner(convRepo repo.ConversationRepo, notifier repo.NotifierRepo, interval time.Duration) *DigestRunner {
	return &DigestRunner{
		convRepo: convRepo,
		notifier: notifier,
		interval: interval,
		lastRun:  time.Now(),
		stopCh:   make(chan struct{}),
	}
}

// Start starts the digest runner
func (r *DigestRunner) Start() {
	if r.running || r.interval <= 0 {
		return
	}
	r.running = true
	r.wg.Add(1)
	go r.loop()
	fmt.Printf("[Digest] Started with interval %v\n", r.interval)
}

// Stop stops the digest runner
func (r *DigestRunner) Stop() {
	if !r.running {
		return
	}
	r.running = false
	close(r.stopCh)
	r.wg.Wait()
	fmt.Println("[Digest] Stopped")
}

func (r *DigestRunner) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := r.RunOnce(ctx); err != nil {
				fmt.Printf("[Digest] Failed: %v\n", err)
			}
			cancel()
		case <-r.stopCh:
			return
		}
	}
}

// RunOnce posts activity since the previous run; nothing is sent for a quiet period
func (r *DigestRunner) RunOnce(ctx context.Context) error {
	since := r.lastRun
	now := time.Now()

	activity, err := r.convRepo.Activity(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to load activity: %w", err)
	}
	r.lastRun = now

	if len(activity) == 0 {
		fmt.Println("[Digest] No activity since last run")
		return nil
	}

	return r.notifier.Notify(ctx, &domain.Notification{
		Kind: domain.NotifyDigest,
		Text: FormatDigest(since, now, activity),
	})
}

// FormatDigest renders one line per account
func FormatDigest(since, until time.Time, activity []*domain.AccountActivity) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s - %s\n", since.Format("01-02 15:04"), until.Format("01-02 15:04")))
	for _, a := range activity {
		sb.WriteString(fmt.Sprintf("%s: %d in / %d out / %d chats\n", a.AccountID, a.Inbound, a.Replies, a.Chats))
	}
	return strings.TrimRight(sb.String(), "\n")
}
