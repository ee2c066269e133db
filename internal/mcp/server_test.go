package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

func newMockAPI(t *testing.T, handler http.HandlerFunc) *Server {
	t.Helper()
	api := httptest.NewServer(handler)
	t.Cleanup(api.Close)
	return NewServer(NewClient(api.URL), "acc")
}

func TestHandleGetHistory(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	server := newMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chats/c1/messages" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("account_id") != "acc" || r.URL.Query().Get("limit") != "20" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []domain.Message{
				{Role: domain.RoleUser, Content: "多少钱", Intent: domain.IntentPrice, CreatedAt: created},
				{Role: domain.RoleAssistant, Content: "200", CreatedAt: created.Add(time.Second)},
			},
		})
	})

	_, out, err := server.handleGetHistory(context.Background(), nil, HistoryInput{ChatID: "c1"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(out.Messages))
	}
	if out.Messages[0].Intent != "price" || out.Messages[0].CreatedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("Unexpected first message: %+v", out.Messages[0])
	}
	if out.Messages[1].Role != "assistant" {
		t.Errorf("Expected assistant, got %s", out.Messages[1].Role)
	}

	if _, _, err := server.handleGetHistory(context.Background(), nil, HistoryInput{}); err == nil {
		t.Error("Expected error without chat_id")
	}
}

func TestHandleGetBargainCount(t *testing.T) {
	server := newMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chats/c1/bargain" || r.URL.Query().Get("account_id") != "other" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]int{"count": 2})
	})

	_, out, err := server.handleGetBargainCount(context.Background(), nil, ChatInput{ChatID: "c1", AccountID: "other"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Count != 2 {
		t.Errorf("Expected 2, got %d", out.Count)
	}
}

func TestHandleGetSettings_NoDefaultAccount(t *testing.T) {
	server := NewServer(NewClient("http://127.0.0.1:0"), "")

	if _, _, err := server.handleGetSettings(context.Background(), nil, AccountInput{}); err == nil {
		t.Error("Expected error without account")
	}
}

func TestHandleSetKnowledge(t *testing.T) {
	var gotBody map[string]string
	server := newMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/items/acc/i1/knowledge" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})

	_, out, err := server.handleSetKnowledge(context.Background(), nil, SetKnowledgeInput{ItemID: "i1", KnowledgeBase: "不议价"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !out.Success {
		t.Error("Expected success")
	}
	if gotBody["knowledge_base"] != "不议价" {
		t.Errorf("Unexpected body: %v", gotBody)
	}
}

func TestHandleSetKnowledge_UnknownItem(t *testing.T) {
	server := newMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"item not found"}`))
	})

	_, _, err := server.handleSetKnowledge(context.Background(), nil, SetKnowledgeInput{ItemID: "i1", KnowledgeBase: "x"})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("Expected 404 error, got %v", err)
	}
}

func TestHandleTestReply(t *testing.T) {
	var gotBody struct {
		Message string           `json:"message"`
		Item    *domain.ItemInfo `json:"item"`
	}
	server := newMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/reply-test/acc" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "reply": "最低180", "intent": "price"})
	})

	_, out, err := server.handleTestReply(context.Background(), nil, TestReplyInput{Message: "最低多少", ItemTitle: "耳机"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Reply != "最低180" || out.Intent != "price" {
		t.Errorf("Unexpected output: %+v", out)
	}
	if gotBody.Item == nil || gotBody.Item.Title != "耳机" {
		t.Errorf("Item not forwarded: %+v", gotBody.Item)
	}
}

func TestServer_CallToolOverTransport(t *testing.T) {
	server := newMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/intent" {
			http.NotFound(w, r)
			return
		}
		intent := "default"
		if strings.Contains(r.URL.Query().Get("text"), "包邮") {
			intent = "price"
		}
		json.NewEncoder(w).Encode(map[string]string{"intent": intent})
	})

	ctx := context.Background()
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	if _, err := server.server.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("Server connect failed: %v", err)
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("Client connect failed: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(tools.Tools) != 7 {
		t.Errorf("Expected 7 tools, got %d", len(tools.Tools))
	}

	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "reply_classify_intent",
		Arguments: map[string]interface{}{"text": "包邮吗"},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if res.IsError || len(res.Content) == 0 {
		t.Fatalf("Unexpected result: %+v", res)
	}
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok || !strings.Contains(text.Text, `"intent":"price"`) {
		t.Errorf("Unexpected content: %+v", res.Content[0])
	}
}
