package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/usecase"
	"github.com/xianyu-tools/ai-reply-engine/internal/data"
	"github.com/xianyu-tools/ai-reply-engine/internal/service"
)

// MockCompleter implements repo.CompletionRepo for testing
type MockCompleter struct {
	reply string
	err   error
	last  *domain.ReplySettings
}

func (m *MockCompleter) Complete(ctx context.Context, settings *domain.ReplySettings, req *domain.CompletionRequest) (string, error) {
	m.last = settings
	return m.reply, m.err
}

type nopSink struct{}

func (nopSink) Deliver(ctx context.Context, msg *domain.Message) error { return nil }

func newTestServer(t *testing.T) (*Server, *data.Repositories, *MockCompleter) {
	t.Helper()
	repos, err := data.NewRepositories(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("failed to open repositories: %v", err)
	}
	t.Cleanup(func() { repos.Close() })

	cfg := usecase.DefaultReplyConfig()
	cfg.Debounce = usecase.DebounceConfig{
		Wait:           50 * time.Millisecond,
		ArrivalSpacing: 50 * time.Millisecond,
		Margin:         100 * time.Millisecond,
	}

	completer := &MockCompleter{reply: "可以小刀"}
	replyUC := usecase.NewReplyUsecase(
		repos.Conversation,
		repos.Settings,
		completer,
		usecase.NewIntentClassifier(usecase.DefaultIntentConfig()),
		usecase.NewChatLockRegistry(),
		usecase.NewPromptBuilder(usecase.PromptConfig{}, 10),
		cfg,
	)
	knowledgeUC := usecase.NewKnowledgeUsecase(repos.Item)
	usecases := &biz.Usecases{
		Reply:        replyUC,
		Conversation: usecase.NewConversationUsecase(repos.Conversation),
		Settings:     usecase.NewSettingsUsecase(repos.Settings),
		Knowledge:    knowledgeUC,
	}
	inbound := service.NewInboundService(replyUC, knowledgeUC, nopSink{}, nil)
	t.Cleanup(inbound.Wait)

	return NewServer(usecases, inbound, 0), repos, completer
}

func doRequest(t *testing.T, s *Server, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func enableAccount(t *testing.T, s *Server, accountID string) {
	t.Helper()
	w := doRequest(t, s, http.MethodPut, "/api/settings/"+accountID, map[string]interface{}{
		"enabled": true,
		"api_key": "sk-1234567890",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("failed to enable account: %d %s", w.Code, w.Body.String())
	}
}

func TestHandleReply(t *testing.T) {
	server, _, _ := newTestServer(t)
	enableAccount(t, server, "acc")

	w := doRequest(t, server, http.MethodPost, "/api/reply", map[string]interface{}{
		"message":    "能便宜点吗",
		"chat_id":    "c1",
		"account_id": "acc",
		"skip_wait":  true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Replied bool   `json:"replied"`
		Reply   string `json:"reply"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.Replied || resp.Reply != "可以小刀" {
		t.Errorf("unexpected response: %+v", resp)
	}

	// bargain round is now visible
	w = doRequest(t, server, http.MethodGet, "/api/chats/c1/bargain?account_id=acc", nil)
	var count struct {
		Count int `json:"count"`
	}
	json.NewDecoder(w.Body).Decode(&count)
	if count.Count != 1 {
		t.Errorf("expected bargain count 1, got %d", count.Count)
	}

	w = doRequest(t, server, http.MethodGet, "/api/chats/c1/messages?account_id=acc&limit=10", nil)
	var history struct {
		Messages []domain.Message `json:"messages"`
	}
	json.NewDecoder(w.Body).Decode(&history)
	if len(history.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history.Messages))
	}
	if history.Messages[0].Role != domain.RoleUser || history.Messages[1].Role != domain.RoleAssistant {
		t.Errorf("unexpected history order: %+v", history.Messages)
	}
}

func TestHandleReply_DisabledAccount(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodPost, "/api/reply", map[string]interface{}{
		"message":    "在吗",
		"chat_id":    "c1",
		"account_id": "acc",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"replied":false`) {
		t.Errorf("disabled account should not reply: %s", w.Body.String())
	}
}

func TestHandleReply_Validation(t *testing.T) {
	server, _, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		body   interface{}
		status int
	}{
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed},
		{"missing chat", http.MethodPost, map[string]string{"message": "hi", "account_id": "acc"}, http.StatusBadRequest},
		{"blank message", http.MethodPost, map[string]string{"message": "  ", "chat_id": "c", "account_id": "acc"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, server, tt.method, "/api/reply", tt.body)
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestHandleInbound(t *testing.T) {
	server, _, _ := newTestServer(t)
	enableAccount(t, server, "acc")

	body := map[string]interface{}{"msg_id": "m1", "message": "在吗", "chat_id": "c1", "account_id": "acc"}
	w := doRequest(t, server, http.MethodPost, "/api/inbound", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", w.Code)
	}
	var resp struct {
		Accepted  bool   `json:"accepted"`
		RequestID string `json:"request_id"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.Accepted || resp.RequestID == "" {
		t.Errorf("unexpected response: %+v", resp)
	}

	w = doRequest(t, server, http.MethodPost, "/api/inbound", body)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"accepted":false`) {
		t.Errorf("duplicate should be rejected, got %d %s", w.Code, w.Body.String())
	}
}

func TestHandleSettings(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/settings/acc", nil)
	var settings domain.ReplySettings
	json.NewDecoder(w.Body).Decode(&settings)
	if settings.Enabled || settings.MaxBargainRounds != domain.DefaultMaxBargainRounds {
		t.Errorf("expected defaults, got %+v", settings)
	}

	enableAccount(t, server, "acc")

	w = doRequest(t, server, http.MethodGet, "/api/settings/acc", nil)
	json.NewDecoder(w.Body).Decode(&settings)
	if !settings.Enabled {
		t.Error("expected enabled")
	}
	if settings.APIKey != "***7890" {
		t.Errorf("expected masked key, got %q", settings.APIKey)
	}

	w = doRequest(t, server, http.MethodPut, "/api/settings/acc", map[string]interface{}{"max_bargain_rounds": -1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid patch, got %d", w.Code)
	}

	w = doRequest(t, server, http.MethodGet, "/api/settings", nil)
	if !strings.Contains(w.Body.String(), `"account_id":"acc"`) || strings.Contains(w.Body.String(), "sk-1234567890") {
		t.Errorf("unexpected settings list: %s", w.Body.String())
	}
}

func TestHandleReplyTest(t *testing.T) {
	server, repos, completer := newTestServer(t)

	w := doRequest(t, server, http.MethodPost, "/api/reply-test/acc", map[string]interface{}{
		"message":       "最低多少",
		"item":          map[string]string{"title": "耳机", "price": "200"},
		"test_settings": map[string]interface{}{"model_name": "qwen-max"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "可以小刀") || !strings.Contains(w.Body.String(), `"intent":"price"`) {
		t.Errorf("unexpected response: %s", w.Body.String())
	}
	if completer.last == nil || completer.last.ModelName != "qwen-max" {
		t.Errorf("override not applied: %+v", completer.last)
	}

	// nothing persisted and stored settings untouched
	activity, _ := repos.Conversation.Activity(context.Background(), time.Time{})
	if len(activity) != 0 {
		t.Errorf("reply test should not persist messages, got %+v", activity)
	}
	stored, _ := repos.Settings.Get(context.Background(), "acc")
	if stored.ModelName == "qwen-max" {
		t.Error("override should not be saved")
	}

	completer.err = &domain.ProviderError{Provider: "openai", Err: context.DeadlineExceeded}
	w = doRequest(t, server, http.MethodPost, "/api/reply-test/acc", map[string]interface{}{"message": "hi"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 on provider failure, got %d", w.Code)
	}
}

func TestHandleItemKnowledge(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/items/acc/i1/knowledge", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	w = doRequest(t, server, http.MethodPut, "/api/items/acc/i1/knowledge", map[string]string{"knowledge_base": "九成新"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown item, got %d", w.Code)
	}

	w = doRequest(t, server, http.MethodPut, "/api/items/acc/i1", map[string]string{"title": "键盘", "price": "150"})
	if w.Code != http.StatusOK {
		t.Fatalf("failed to save item: %d %s", w.Code, w.Body.String())
	}

	w = doRequest(t, server, http.MethodPut, "/api/items/acc/i1/knowledge", map[string]string{"knowledge_base": "九成新"})
	if w.Code != http.StatusOK {
		t.Fatalf("failed to save knowledge: %d %s", w.Code, w.Body.String())
	}

	w = doRequest(t, server, http.MethodGet, "/api/items/acc/i1/knowledge", nil)
	if !strings.Contains(w.Body.String(), "九成新") {
		t.Errorf("knowledge not returned: %s", w.Body.String())
	}

	w = doRequest(t, server, http.MethodGet, "/api/knowledge/export?account_id=acc", nil)
	var export struct {
		Items []domain.KnowledgeExport `json:"items"`
		Total int                      `json:"total"`
	}
	json.NewDecoder(w.Body).Decode(&export)
	if export.Total != 1 || export.Items[0].ItemID != "i1" || export.Items[0].Title != "键盘" {
		t.Errorf("unexpected export: %+v", export)
	}

	w = doRequest(t, server, http.MethodPost, "/api/knowledge/import/acc", map[string]string{"i1": "全新", "missing": "x"})
	var result domain.ImportResult
	json.NewDecoder(w.Body).Decode(&result)
	if result.Success != 1 || result.Failed != 1 {
		t.Errorf("unexpected import result: %+v", result)
	}
}

func TestHandleIntentAndStats(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/intent?text="+url.QueryEscape("包邮吗"), nil)
	if !strings.Contains(w.Body.String(), `"intent":"price"`) {
		t.Errorf("unexpected intent response: %s", w.Body.String())
	}

	w = doRequest(t, server, http.MethodGet, "/api/stats", nil)
	if !strings.Contains(w.Body.String(), `"chat_locks":0`) {
		t.Errorf("unexpected stats: %s", w.Body.String())
	}

	w = doRequest(t, server, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("unexpected health response: %d %s", w.Code, w.Body.String())
	}
}
