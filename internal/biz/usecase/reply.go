package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/repo"
)

// DebounceConfig holds the burst aggregation timing.
// The staleness windows are derived from these values, so changing the
// wait re-derives both windows.
type DebounceConfig struct {
	Wait             time.Duration // In-process wait before deciding whether to reply
	ArrivalSpacing   time.Duration // Largest expected gap between messages of one burst
	ExternalDebounce time.Duration // Debounce the caller already applied when SkipWait is set
	Margin           time.Duration // Slack for scheduling and store latency
}

// DefaultDebounceConfig returns the production timing (10s wait, 25s / 6s windows)
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		Wait:             10 * time.Second,
		ArrivalSpacing:   10 * time.Second,
		ExternalDebounce: 1 * time.Second,
		Margin:           5 * time.Second,
	}
}

// AggregationWindow is the staleness look-back after an in-process wait
func (c DebounceConfig) AggregationWindow() time.Duration {
	return c.Wait + c.ArrivalSpacing + c.Margin
}

// SkipWaitWindow is the staleness look-back when the caller debounced externally
func (c DebounceConfig) SkipWaitWindow() time.Duration {
	return c.ExternalDebounce + c.Margin
}

// StalenessWindow selects the look-back for an invocation
func (c DebounceConfig) StalenessWindow(skipWait bool) time.Duration {
	if skipWait {
		return c.SkipWaitWindow()
	}
	return c.AggregationWindow()
}

// ReplyConfig contains reply orchestration configuration
type ReplyConfig struct {
	Debounce     DebounceConfig
	HistoryLimit int // Most recent turns loaded for the prompt
	MaxTokens    int
	Temperature  float32
}

// DefaultReplyConfig returns default reply configuration
func DefaultReplyConfig() ReplyConfig {
	return ReplyConfig{
		Debounce:     DefaultDebounceConfig(),
		HistoryLimit: 20,
		MaxTokens:    100,
		Temperature:  0.7,
	}
}

// ReplyRequest is one inbound buyer message
type ReplyRequest struct {
	Message   string
	Item      *domain.ItemInfo
	ChatID    string
	AccountID string
	BuyerID   string
	ItemID    string
	SkipWait  bool // Caller already debounced the burst
}

// ReplyOutcome describes a produced reply
type ReplyOutcome struct {
	Reply        string
	Intent       domain.Intent
	BargainCount int
	Refused      bool // Bargain ceiling reached; Reply is the scripted refusal
}

// ReplyResult is the single value delivered by GenerateReplyAsync
type ReplyResult struct {
	Reply string
	OK    bool
}

// ReplyUsecase runs the debounce / serialization protocol for inbound messages
type ReplyUsecase struct {
	convRepo       repo.ConversationRepo
	settingsRepo   repo.SettingsRepo
	completionRepo repo.CompletionRepo
	notifier       repo.NotifierRepo
	lifetime       context.Context

	classifier *IntentClassifier
	locks      *ChatLockRegistry
	bargain    *BargainEvaluator
	prompts    *PromptBuilder
	config     ReplyConfig
}

// NewReplyUsecase creates a new reply usecase
func NewReplyUsecase(
	convRepo repo.ConversationRepo,
	settingsRepo repo.SettingsRepo,
	completionRepo repo.CompletionRepo,
	classifier *IntentClassifier,
	locks *ChatLockRegistry,
	prompts *PromptBuilder,
	config ReplyConfig,
) *ReplyUsecase {
	return &ReplyUsecase{
		convRepo:       convRepo,
		settingsRepo:   settingsRepo,
		completionRepo: completionRepo,
		classifier:     classifier,
		locks:          locks,
		bargain:        NewBargainEvaluator(convRepo),
		prompts:        prompts,
		config:         config,
		lifetime:       context.Background(),
	}
}

// SetNotifier sets the operator notifier (optional)
func (uc *ReplyUsecase) SetNotifier(notifier repo.NotifierRepo) {
	uc.notifier = notifier
}

// SetLifetime binds the debounce wait to the process lifetime. Cancelling
// ctx interrupts pending waits; caller contexts never do.
func (uc *ReplyUsecase) SetLifetime(ctx context.Context) {
	uc.lifetime = ctx
}

// Locks returns the chat lock registry
func (uc *ReplyUsecase) Locks() *ChatLockRegistry {
	return uc.locks
}

// Classify exposes the intent classifier
func (uc *ReplyUsecase) Classify(text string) domain.Intent {
	return uc.classifier.Classify(text)
}

// GenerateReply runs the protocol and absorbs every failure.
// ok is false when no reply was produced, which is a legitimate outcome.
func (uc *ReplyUsecase) GenerateReply(ctx context.Context, req *ReplyRequest) (reply string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if req != nil {
				fmt.Printf("[Reply] Panic while generating reply (account=%s chat=%s): %v\n", req.AccountID, req.ChatID, r)
			} else {
				fmt.Printf("[Reply] Panic while generating reply: %v\n", r)
			}
			reply, ok = "", false
		}
	}()
	if req == nil {
		fmt.Println("[Reply] Ignoring nil reply request")
		return "", false
	}

	out, err := uc.Run(ctx, req)
	if err != nil {
		if !domain.IsNoOp(err) {
			fmt.Printf("[Reply] Failed to generate reply (account=%s chat=%s): %v\n", req.AccountID, req.ChatID, err)
		}
		return "", false
	}
	return out.Reply, true
}

// GenerateReplyAsync runs GenerateReply on its own goroutine, including the
// debounce wait. The channel yields exactly one result and is then closed.
func (uc *ReplyUsecase) GenerateReplyAsync(ctx context.Context, req *ReplyRequest) <-chan ReplyResult {
	ch := make(chan ReplyResult, 1)
	go func() {
		defer close(ch)
		reply, ok := uc.GenerateReply(ctx, req)
		ch <- ReplyResult{Reply: reply, OK: ok}
	}()
	return ch
}

// Run executes the protocol and reports why no reply was produced.
// ErrReplyDisabled and ErrStaleMessage are clean no-ops.
// An invocation runs to completion even if ctx is cancelled; only the
// lifetime context set with SetLifetime interrupts the debounce wait.
func (uc *ReplyUsecase) Run(ctx context.Context, req *ReplyRequest) (*ReplyOutcome, error) {
	ctx = context.WithoutCancel(ctx)

	settings, err := uc.settingsRepo.Get(ctx, req.AccountID)
	if err != nil {
		return nil, &domain.StoreError{Op: domain.OpLoadSettings, Err: err}
	}
	if !settings.Enabled {
		return nil, domain.ErrReplyDisabled
	}

	// 1. Classify
	intent := uc.classifier.Classify(req.Message)
	fmt.Printf("[Reply] Detected intent: %s (account=%s)\n", intent, req.AccountID)

	// 2. Persist before any waiting
	inbound := &domain.Message{
		ChatID:    req.ChatID,
		AccountID: req.AccountID,
		BuyerID:   req.BuyerID,
		ItemID:    req.ItemID,
		Role:      domain.RoleUser,
		Content:   req.Message,
		Intent:    intent,
	}
	createdAt, err := uc.convRepo.Append(ctx, inbound)
	if err != nil {
		storeErr := &domain.StoreError{Op: domain.OpAppendInbound, Err: err}
		uc.reportLostMessage(ctx, req, storeErr)
		return nil, storeErr
	}

	// 3. Debounce wait, never under the chat lock
	if !req.SkipWait {
		fmt.Printf("[Reply] [%s] Message saved, waiting %v for follow-ups: %s (at %s)\n",
			req.AccountID, uc.config.Debounce.Wait, domain.Preview(req.Message, 20), formatStamp(createdAt))
		if err := sleepContext(uc.lifetime, uc.config.Debounce.Wait); err != nil {
			return nil, fmt.Errorf("debounce wait interrupted by shutdown: %w", err)
		}
	} else {
		fmt.Printf("[Reply] [%s] Message saved, external debounce in effect: %s (at %s)\n",
			req.AccountID, domain.Preview(req.Message, 20), formatStamp(createdAt))
	}

	// 4. Serialize per chat
	var out *ReplyOutcome
	err = uc.locks.WithLock(req.ChatID, func() error {
		var lockedErr error
		out, lockedErr = uc.replyLocked(ctx, req, intent, createdAt)
		return lockedErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// replyLocked runs steps 5-10 while the chat lock is held
func (uc *ReplyUsecase) replyLocked(ctx context.Context, req *ReplyRequest, intent domain.Intent, createdAt time.Time) (*ReplyOutcome, error) {
	// 5. Staleness check
	window := uc.config.Debounce.StalenessWindow(req.SkipWait)
	recent, err := uc.convRepo.QueryRecent(ctx, domain.MessageQuery{
		ChatID:    req.ChatID,
		AccountID: req.AccountID,
		Role:      domain.RoleUser,
		Since:     window,
		Order:     domain.OrderAsc,
	})
	if err != nil {
		return nil, &domain.StoreError{Op: domain.OpQueryRecent, Err: err}
	}
	if len(recent) > 0 {
		latest := recent[len(recent)-1]
		if !domain.SameInstant(latest.CreatedAt, createdAt) {
			fmt.Printf("[Reply] [%s] Newer message found, skipping: %s (at %s), newest: %s (at %s)\n",
				req.AccountID, domain.Preview(req.Message, 20), formatStamp(createdAt),
				domain.Preview(latest.Content, 20), formatStamp(latest.CreatedAt))
			return nil, domain.ErrStaleMessage
		}
		fmt.Printf("[Reply] [%s] Newest message in %v window, replying to burst of %d\n", req.AccountID, window, len(recent))
	}

	// 6. Settings, history, bargain state
	settings, err := uc.settingsRepo.Get(ctx, req.AccountID)
	if err != nil {
		return nil, &domain.StoreError{Op: domain.OpLoadSettings, Err: err}
	}

	history, err := uc.loadHistory(ctx, req.ChatID, req.AccountID)
	if err != nil {
		return nil, &domain.StoreError{Op: domain.OpLoadHistory, Err: err}
	}

	bargainCount, err := uc.bargain.CountRounds(ctx, req.ChatID, req.AccountID)
	if err != nil {
		return nil, &domain.StoreError{Op: domain.OpCountBargain, Err: err}
	}

	// 7. Bargain ceiling. Count and the triggering write are not atomic across invocations.
	if intent == domain.IntentPrice && CeilingReached(bargainCount, settings.MaxBargainRounds) {
		fmt.Printf("[Reply] [%s] Bargain ceiling reached (%d/%d), refusing\n", req.AccountID, bargainCount, settings.MaxBargainRounds)
		refusal := uc.prompts.RefusalText()
		if err := uc.appendReply(ctx, req, refusal, intent); err != nil {
			return nil, err
		}
		uc.notify(&domain.Notification{
			Kind:      domain.NotifyBargainCeiling,
			AccountID: req.AccountID,
			ChatID:    req.ChatID,
			Text:      fmt.Sprintf("rounds %d/%d, last: %s", bargainCount, settings.MaxBargainRounds, domain.Preview(req.Message, 40)),
		})
		return &ReplyOutcome{Reply: refusal, Intent: intent, BargainCount: bargainCount, Refused: true}, nil
	}

	// 8. Prompt assembly
	completionReq := &domain.CompletionRequest{
		SystemPrompt: uc.prompts.SystemPrompt(intent, settings),
		UserPrompt: uc.prompts.UserPrompt(&PromptInput{
			Item:         req.Item,
			History:      history,
			BargainCount: bargainCount,
			Settings:     settings,
			Message:      req.Message,
		}),
		MaxTokens:   uc.config.MaxTokens,
		Temperature: uc.config.Temperature,
	}

	// 9. Completion
	reply, err := uc.complete(ctx, settings, completionReq)
	if err != nil {
		uc.notify(&domain.Notification{
			Kind:      domain.NotifyProviderFailure,
			AccountID: req.AccountID,
			ChatID:    req.ChatID,
			Text:      err.Error(),
		})
		return nil, err
	}

	// 10. Persist reply with the triggering intent
	if err := uc.appendReply(ctx, req, reply, intent); err != nil {
		return nil, err
	}

	fmt.Printf("[Reply] [%s] Reply generated: %s\n", req.AccountID, domain.Preview(reply, 40))
	return &ReplyOutcome{Reply: reply, Intent: intent, BargainCount: bargainCount}, nil
}

// TestReply previews a reply for an account without debounce, locking, or persistence.
// override is applied on top of the stored settings; disabled accounts can be tested.
func (uc *ReplyUsecase) TestReply(ctx context.Context, accountID, message string, item *domain.ItemInfo, override *domain.SettingsPatch) (*ReplyOutcome, error) {
	stored, err := uc.settingsRepo.Get(ctx, accountID)
	if err != nil {
		return nil, &domain.StoreError{Op: domain.OpLoadSettings, Err: err}
	}
	settings := stored.Clone()
	if override != nil {
		override.Apply(settings)
	}

	intent := uc.classifier.Classify(message)
	reply, err := uc.complete(ctx, settings, &domain.CompletionRequest{
		SystemPrompt: uc.prompts.SystemPrompt(intent, settings),
		UserPrompt: uc.prompts.UserPrompt(&PromptInput{
			Item:     item,
			Settings: settings,
			Message:  message,
		}),
		MaxTokens:   uc.config.MaxTokens,
		Temperature: uc.config.Temperature,
	})
	if err != nil {
		return nil, err
	}
	return &ReplyOutcome{Reply: reply, Intent: intent}, nil
}

func (uc *ReplyUsecase) complete(ctx context.Context, settings *domain.ReplySettings, req *domain.CompletionRequest) (string, error) {
	reply, err := uc.completionRepo.Complete(ctx, settings, req)
	if err != nil {
		var pe *domain.ProviderError
		if errors.As(err, &pe) {
			return "", err
		}
		return "", &domain.ProviderError{Provider: "completion", Err: err}
	}
	if reply == "" {
		return "", &domain.ProviderError{Provider: "completion", Body: "empty reply"}
	}
	return reply, nil
}

// loadHistory returns the most recent turns, oldest first
func (uc *ReplyUsecase) loadHistory(ctx context.Context, chatID, accountID string) ([]*domain.Message, error) {
	msgs, err := uc.convRepo.QueryRecent(ctx, domain.MessageQuery{
		ChatID:    chatID,
		AccountID: accountID,
		Limit:     uc.config.HistoryLimit,
		Order:     domain.OrderDesc,
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (uc *ReplyUsecase) appendReply(ctx context.Context, req *ReplyRequest, content string, intent domain.Intent) error {
	_, err := uc.convRepo.Append(ctx, &domain.Message{
		ChatID:    req.ChatID,
		AccountID: req.AccountID,
		BuyerID:   req.BuyerID,
		ItemID:    req.ItemID,
		Role:      domain.RoleAssistant,
		Content:   content,
		Intent:    intent,
	})
	if err != nil {
		return &domain.StoreError{Op: domain.OpAppendReply, Err: err}
	}
	return nil
}

// reportLostMessage escalates a failed save of the buyer's own message
func (uc *ReplyUsecase) reportLostMessage(ctx context.Context, req *ReplyRequest, err error) {
	fmt.Printf("[Reply] CRITICAL: buyer message not saved (account=%s chat=%s buyer=%s): %s: %v\n",
		req.AccountID, req.ChatID, req.BuyerID, domain.Preview(req.Message, 40), err)
	uc.notify(&domain.Notification{
		Kind:      domain.NotifyLostMessage,
		AccountID: req.AccountID,
		ChatID:    req.ChatID,
		Text:      fmt.Sprintf("buyer=%s message=%s error=%v", req.BuyerID, req.Message, err),
	})
}

// notify delivers in the background so the chat lock is never held across a notifier call
func (uc *ReplyUsecase) notify(n *domain.Notification) {
	if uc.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := uc.notifier.Notify(ctx, n); err != nil {
			fmt.Printf("[Reply] Failed to send %s notification: %v\n", n.Kind, err)
		}
	}()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func formatStamp(t time.Time) string {
	return t.Format("15:04:05.000000")
}
