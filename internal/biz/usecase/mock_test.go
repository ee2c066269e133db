package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// Mock implementations

// memConvRepo is an in-memory append log with strictly increasing timestamps
type memConvRepo struct {
	mu        sync.Mutex
	msgs      []*domain.Message
	last      int64
	appendErr error
}

func newMemConvRepo() *memConvRepo {
	return &memConvRepo{}
}

func (m *memConvRepo) Append(ctx context.Context, msg *domain.Message) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return time.Time{}, m.appendErr
	}

	ts := time.Now().UnixMicro()
	if ts <= m.last {
		ts = m.last + 1
	}
	m.last = ts

	msg.ID = fmt.Sprintf("m%d", len(m.msgs)+1)
	msg.CreatedAt = time.UnixMicro(ts)
	stored := *msg
	m.msgs = append(m.msgs, &stored)
	return msg.CreatedAt, nil
}

func (m *memConvRepo) QueryRecent(ctx context.Context, q domain.MessageQuery) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cutoff int64
	if q.Since > 0 {
		cutoff = time.Now().Add(-q.Since).UnixMicro()
	}

	var out []*domain.Message
	for _, msg := range m.msgs {
		if msg.ChatID != q.ChatID || msg.AccountID != q.AccountID {
			continue
		}
		if q.Role != "" && msg.Role != q.Role {
			continue
		}
		if q.Since > 0 && msg.CreatedAt.UnixMicro() <= cutoff {
			continue
		}
		c := *msg
		out = append(out, &c)
	}

	if q.Order == domain.OrderDesc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memConvRepo) CountWhere(ctx context.Context, chatID, accountID string, role domain.Role, intent domain.Intent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, msg := range m.msgs {
		if msg.ChatID == chatID && msg.AccountID == accountID && msg.Role == role && msg.Intent == intent {
			count++
		}
	}
	return count, nil
}

func (m *memConvRepo) Activity(ctx context.Context, since time.Time) ([]*domain.AccountActivity, error) {
	return nil, nil
}

func (m *memConvRepo) Close() error { return nil }

func (m *memConvRepo) byRole(role domain.Role) []*domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Message
	for _, msg := range m.msgs {
		if msg.Role == role {
			out = append(out, msg)
		}
	}
	return out
}

// hookConvRepo runs afterCount once, right after the first bargain count is read
type hookConvRepo struct {
	*memConvRepo
	once       sync.Once
	afterCount func()
}

func (h *hookConvRepo) CountWhere(ctx context.Context, chatID, accountID string, role domain.Role, intent domain.Intent) (int, error) {
	count, err := h.memConvRepo.CountWhere(ctx, chatID, accountID, role, intent)
	if h.afterCount != nil {
		h.once.Do(h.afterCount)
	}
	return count, err
}

type mockSettingsRepo struct {
	mu       sync.Mutex
	settings map[string]*domain.ReplySettings
}

func newMockSettingsRepo() *mockSettingsRepo {
	return &mockSettingsRepo{settings: make(map[string]*domain.ReplySettings)}
}

func (m *mockSettingsRepo) Get(ctx context.Context, accountID string) (*domain.ReplySettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.settings[accountID]; ok {
		return s.Clone(), nil
	}
	return domain.DefaultReplySettings(accountID), nil
}

func (m *mockSettingsRepo) Save(ctx context.Context, accountID string, patch *domain.SettingsPatch) (*domain.ReplySettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[accountID]
	if !ok {
		s = domain.DefaultReplySettings(accountID)
		m.settings[accountID] = s
	}
	patch.Apply(s)
	return s.Clone(), nil
}

func (m *mockSettingsRepo) List(ctx context.Context) ([]*domain.ReplySettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ReplySettings
	for _, s := range m.settings {
		out = append(out, s.Clone())
	}
	return out, nil
}

func (m *mockSettingsRepo) enable(accountID string, maxRounds int) {
	enabled := true
	m.Save(context.Background(), accountID, &domain.SettingsPatch{Enabled: &enabled, MaxBargainRounds: &maxRounds})
}

// countingProvider records every completion call
type countingProvider struct {
	calls int32
	reply string
	err   error

	mu   sync.Mutex
	reqs []*domain.CompletionRequest
}

func (p *countingProvider) Complete(ctx context.Context, settings *domain.ReplySettings, req *domain.CompletionRequest) (string, error) {
	atomic.AddInt32(&p.calls, 1)
	p.mu.Lock()
	p.reqs = append(p.reqs, req)
	p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func (p *countingProvider) Calls() int {
	return int(atomic.LoadInt32(&p.calls))
}

func (p *countingProvider) lastRequest() *domain.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reqs) == 0 {
		return nil
	}
	return p.reqs[len(p.reqs)-1]
}

type mockNotifier struct {
	ch chan *domain.Notification
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{ch: make(chan *domain.Notification, 16)}
}

func (n *mockNotifier) Notify(ctx context.Context, note *domain.Notification) error {
	n.ch <- note
	return nil
}

func (n *mockNotifier) wait(kind domain.NotificationKind, timeout time.Duration) (*domain.Notification, error) {
	deadline := time.After(timeout)
	for {
		select {
		case note := <-n.ch:
			if note.Kind == kind {
				return note, nil
			}
		case <-deadline:
			return nil, errors.New("notification not received")
		}
	}
}

type mockItemRepo struct {
	items map[string]*domain.ItemInfo
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: make(map[string]*domain.ItemInfo)}
}

func itemKey(accountID, itemID string) string { return accountID + "/" + itemID }

func (m *mockItemRepo) Upsert(ctx context.Context, item *domain.ItemInfo) error {
	c := *item
	if existing, ok := m.items[itemKey(item.AccountID, item.ID)]; ok {
		c.KnowledgeBase = existing.KnowledgeBase
	}
	m.items[itemKey(item.AccountID, item.ID)] = &c
	return nil
}

func (m *mockItemRepo) Get(ctx context.Context, accountID, itemID string) (*domain.ItemInfo, error) {
	item, ok := m.items[itemKey(accountID, itemID)]
	if !ok {
		return nil, nil
	}
	c := *item
	return &c, nil
}

func (m *mockItemRepo) GetKnowledge(ctx context.Context, accountID, itemID string) (string, error) {
	if item, ok := m.items[itemKey(accountID, itemID)]; ok {
		return item.KnowledgeBase, nil
	}
	return "", nil
}

func (m *mockItemRepo) SaveKnowledge(ctx context.Context, accountID, itemID, kb string) (bool, error) {
	item, ok := m.items[itemKey(accountID, itemID)]
	if !ok {
		return false, nil
	}
	item.KnowledgeBase = kb
	return true, nil
}

func (m *mockItemRepo) ExportKnowledge(ctx context.Context, accountID string) ([]*domain.KnowledgeExport, error) {
	var out []*domain.KnowledgeExport
	for _, item := range m.items {
		if item.KnowledgeBase == "" || (accountID != "" && item.AccountID != accountID) {
			continue
		}
		out = append(out, &domain.KnowledgeExport{ItemID: item.ID, Title: item.Title, KnowledgeBase: item.KnowledgeBase})
	}
	return out, nil
}

func (m *mockItemRepo) ImportKnowledge(ctx context.Context, accountID string, entries map[string]string) (*domain.ImportResult, error) {
	result := &domain.ImportResult{}
	for itemID, kb := range entries {
		ok, _ := m.SaveKnowledge(ctx, accountID, itemID, kb)
		if ok {
			result.Success++
		} else {
			result.Failed++
			result.Missing = append(result.Missing, itemID)
		}
	}
	return result, nil
}
