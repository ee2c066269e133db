package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/usecase"
	"github.com/xianyu-tools/ai-reply-engine/internal/service"
)

// Server provides the HTTP API for the marketplace connector, the MCP server and the CLI
type Server struct {
	usecases *biz.Usecases
	inbound  *service.InboundService

	server *http.Server
	port   int
}

// NewServer creates a new API server
func NewServer(usecases *biz.Usecases, inbound *service.InboundService, port int) *Server {
	return &Server{
		usecases: usecases,
		inbound:  inbound,
		port:     port,
	}
}

// Handler returns the request router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Reply protocol
	mux.HandleFunc("/api/reply", s.handleReply)
	mux.HandleFunc("/api/inbound", s.handleInbound)
	mux.HandleFunc("/api/reply-test/", s.handleReplyTest)

	// Conversation queries
	mux.HandleFunc("/api/chats/", s.handleChat)
	mux.HandleFunc("/api/intent", s.handleIntent)

	// Settings
	mux.HandleFunc("/api/settings", s.handleSettingsList)
	mux.HandleFunc("/api/settings/", s.handleSettings)

	// Items and knowledge base
	mux.HandleFunc("/api/items/", s.handleItem)
	mux.HandleFunc("/api/knowledge/export", s.handleKnowledgeExport)
	mux.HandleFunc("/api/knowledge/import/", s.handleKnowledgeImport)

	mux.HandleFunc("/api/stats", s.handleStats)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler: s.Handler(),
	}

	fmt.Printf("[API] Starting HTTP server on port %d\n", s.port)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetPort returns the server port
func (s *Server) GetPort() int {
	return s.port
}

// ============ Reply Handlers ============

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg, ok := decodeInbound(w, r)
	if !ok {
		return
	}

	reply, replied := s.inbound.Handle(r.Context(), msg)
	s.writeJSON(w, map[string]interface{}{"replied": replied, "reply": reply})
}

func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg, ok := decodeInbound(w, r)
	if !ok {
		return
	}

	requestID, accepted := s.inbound.Dispatch(r.Context(), msg)
	if !accepted {
		s.writeJSON(w, map[string]interface{}{"accepted": false, "reason": "duplicate"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{"accepted": true, "request_id": requestID})
}

func decodeInbound(w http.ResponseWriter, r *http.Request) (*service.InboundMessage, bool) {
	var msg service.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if msg.ChatID == "" || msg.AccountID == "" {
		http.Error(w, "chat_id and account_id are required", http.StatusBadRequest)
		return nil, false
	}
	if strings.TrimSpace(msg.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return nil, false
	}
	if msg.Item != nil && msg.Item.ID == "" {
		msg.Item.ID = msg.ItemID
	}
	return &msg, true
}

func (s *Server) handleReplyTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	accountID := strings.TrimPrefix(r.URL.Path, "/api/reply-test/")
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	var req struct {
		Message      string                `json:"message"`
		Item         *domain.ItemInfo      `json:"item"`
		TestSettings *domain.SettingsPatch `json:"test_settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		req.Message = "你好"
	}

	out, err := s.usecases.Reply.TestReply(r.Context(), accountID, req.Message, req.Item, req.TestSettings)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true, "reply": out.Reply, "intent": out.Intent})
}

// ============ Chat Handlers ============

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	// Parse path: /api/chats/{chat_id}/messages or /api/chats/{chat_id}/bargain
	path := strings.TrimPrefix(r.URL.Path, "/api/chats/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	chatID := parts[0]
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	switch parts[1] {
	case "messages":
		limit := 20
		if l := r.URL.Query().Get("limit"); l != "" {
			if parsed, err := strconv.Atoi(l); err == nil {
				limit = parsed
			}
		}
		messages, err := s.usecases.Conversation.History(r.Context(), chatID, accountID, limit)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if messages == nil {
			messages = []*domain.Message{}
		}
		s.writeJSON(w, map[string]interface{}{"messages": messages})

	case "bargain":
		count, err := s.usecases.Conversation.BargainCount(r.Context(), chatID, accountID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, map[string]interface{}{"count": count})

	default:
		http.Error(w, "unknown action", http.StatusNotFound)
	}
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, map[string]interface{}{"intent": s.usecases.Reply.Classify(r.URL.Query().Get("text"))})
}

// ============ Settings Handlers ============

func (s *Server) handleSettingsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all, err := s.usecases.Settings.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	result := make([]*domain.ReplySettings, len(all))
	for i, settings := range all {
		result[i] = masked(settings)
	}
	s.writeJSON(w, map[string]interface{}{"settings": result})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimPrefix(r.URL.Path, "/api/settings/")
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		settings, err := s.usecases.Settings.Get(ctx, accountID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, masked(settings))

	case http.MethodPut:
		var patch domain.SettingsPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := usecase.ValidatePatch(&patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		settings, err := s.usecases.Settings.Update(ctx, accountID, &patch)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, masked(settings))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func masked(settings *domain.ReplySettings) *domain.ReplySettings {
	c := settings.Clone()
	c.APIKey = settings.MaskedAPIKey()
	return c
}

// ============ Item Handlers ============

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	// Parse path: /api/items/{account_id}/{item_id}[/knowledge]
	path := strings.TrimPrefix(r.URL.Path, "/api/items/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	accountID, itemID := parts[0], parts[1]
	ctx := r.Context()

	if len(parts) == 3 && parts[2] == "knowledge" {
		s.handleKnowledge(w, r, accountID, itemID)
		return
	}
	if len(parts) != 2 {
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := s.usecases.Knowledge.GetItem(ctx, accountID, itemID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, item)

	case http.MethodPut:
		var item domain.ItemInfo
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		item.AccountID = accountID
		item.ID = itemID
		if err := s.usecases.Knowledge.SaveItem(ctx, &item); err != nil {
			s.writeError(w, err)
			return
		}
		if item.KnowledgeBase != "" {
			if err := s.usecases.Knowledge.SaveKnowledge(ctx, accountID, itemID, item.KnowledgeBase); err != nil {
				s.writeError(w, err)
				return
			}
		}
		s.writeJSON(w, map[string]interface{}{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleKnowledge(w http.ResponseWriter, r *http.Request, accountID, itemID string) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		kb, err := s.usecases.Knowledge.GetKnowledge(ctx, accountID, itemID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, map[string]interface{}{"item_id": itemID, "knowledge_base": kb})

	case http.MethodPut:
		var req struct {
			KnowledgeBase string `json:"knowledge_base"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.usecases.Knowledge.SaveKnowledge(ctx, accountID, itemID, req.KnowledgeBase); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, map[string]interface{}{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleKnowledgeExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries, err := s.usecases.Knowledge.Export(r.Context(), r.URL.Query().Get("account_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*domain.KnowledgeExport{}
	}
	s.writeJSON(w, map[string]interface{}{"items": entries, "total": len(entries)})
}

func (s *Server) handleKnowledgeImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	accountID := strings.TrimPrefix(r.URL.Path, "/api/knowledge/import/")
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	var entries map[string]string
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.usecases.Knowledge.Import(r.Context(), accountID, entries)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{"chat_locks": s.usecases.Reply.Locks().Len()})
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var pe *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrMissingAPIKey):
		status = http.StatusBadRequest
	case errors.As(err, &pe):
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
