package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// Server exposes the reply engine API as MCP tools
type Server struct {
	server         *mcpsdk.Server
	client         *Client
	defaultAccount string
}

// NewServer creates a new MCP server backed by the HTTP client.
// defaultAccount is used by tools called without an account_id.
func NewServer(client *Client, defaultAccount string) *Server {
	s := &Server{
		server: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    "reply-engine-tools",
			Version: "v1.0.0",
		}, nil),
		client:         client,
		defaultAccount: defaultAccount,
	}
	s.registerTools()
	return s
}

// Run starts the MCP server with stdio transport
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) account(accountID string) (string, error) {
	if accountID != "" {
		return accountID, nil
	}
	if s.defaultAccount == "" {
		return "", fmt.Errorf("account_id is required")
	}
	return s.defaultAccount, nil
}

// ============ Conversation Handlers ============

func (s *Server) handleGetHistory(ctx context.Context, req *mcpsdk.CallToolRequest, in HistoryInput) (*mcpsdk.CallToolResult, HistoryOutput, error) {
	accountID, err := s.account(in.AccountID)
	if err != nil {
		return nil, HistoryOutput{}, err
	}
	if in.ChatID == "" {
		return nil, HistoryOutput{}, fmt.Errorf("chat_id is required")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}

	messages, err := s.client.GetHistory(in.ChatID, accountID, limit)
	if err != nil {
		return nil, HistoryOutput{}, err
	}

	out := HistoryOutput{Messages: make([]HistoryMessage, 0, len(messages))}
	for _, m := range messages {
		out.Messages = append(out.Messages, HistoryMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			Intent:    string(m.Intent),
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetBargainCount(ctx context.Context, req *mcpsdk.CallToolRequest, in ChatInput) (*mcpsdk.CallToolResult, CountOutput, error) {
	accountID, err := s.account(in.AccountID)
	if err != nil {
		return nil, CountOutput{}, err
	}
	if in.ChatID == "" {
		return nil, CountOutput{}, fmt.Errorf("chat_id is required")
	}

	count, err := s.client.GetBargainCount(in.ChatID, accountID)
	if err != nil {
		return nil, CountOutput{}, err
	}
	return nil, CountOutput{Count: count}, nil
}

func (s *Server) handleClassifyIntent(ctx context.Context, req *mcpsdk.CallToolRequest, in ClassifyInput) (*mcpsdk.CallToolResult, IntentOutput, error) {
	intent, err := s.client.ClassifyIntent(in.Text)
	if err != nil {
		return nil, IntentOutput{}, err
	}
	return nil, IntentOutput{Intent: intent}, nil
}

// ============ Settings Handlers ============

func (s *Server) handleGetSettings(ctx context.Context, req *mcpsdk.CallToolRequest, in AccountInput) (*mcpsdk.CallToolResult, SettingsOutput, error) {
	accountID, err := s.account(in.AccountID)
	if err != nil {
		return nil, SettingsOutput{}, err
	}

	settings, err := s.client.GetSettings(accountID)
	if err != nil {
		return nil, SettingsOutput{}, err
	}
	return nil, SettingsOutput{
		AccountID:          settings.AccountID,
		Enabled:            settings.Enabled,
		APIKey:             settings.APIKey,
		BaseURL:            settings.BaseURL,
		ModelName:          settings.ModelName,
		MaxBargainRounds:   settings.MaxBargainRounds,
		MaxDiscountPercent: settings.MaxDiscountPercent,
		MaxDiscountAmount:  settings.MaxDiscountAmount,
		CustomPrompts:      settings.CustomPrompts,
	}, nil
}

// ============ Knowledge Handlers ============

func (s *Server) handleGetKnowledge(ctx context.Context, req *mcpsdk.CallToolRequest, in KnowledgeInput) (*mcpsdk.CallToolResult, KnowledgeOutput, error) {
	accountID, err := s.account(in.AccountID)
	if err != nil {
		return nil, KnowledgeOutput{}, err
	}
	if in.ItemID == "" {
		return nil, KnowledgeOutput{}, fmt.Errorf("item_id is required")
	}

	kb, err := s.client.GetKnowledge(accountID, in.ItemID)
	if err != nil {
		return nil, KnowledgeOutput{}, err
	}
	return nil, KnowledgeOutput{ItemID: in.ItemID, KnowledgeBase: kb}, nil
}

func (s *Server) handleSetKnowledge(ctx context.Context, req *mcpsdk.CallToolRequest, in SetKnowledgeInput) (*mcpsdk.CallToolResult, SuccessOutput, error) {
	accountID, err := s.account(in.AccountID)
	if err != nil {
		return nil, SuccessOutput{}, err
	}
	if in.ItemID == "" {
		return nil, SuccessOutput{}, fmt.Errorf("item_id is required")
	}

	if err := s.client.SetKnowledge(accountID, in.ItemID, in.KnowledgeBase); err != nil {
		return nil, SuccessOutput{}, err
	}
	return nil, SuccessOutput{
		Success: true,
		Message: fmt.Sprintf("Knowledge base of %s updated", in.ItemID),
	}, nil
}

// ============ Reply Handlers ============

func (s *Server) handleTestReply(ctx context.Context, req *mcpsdk.CallToolRequest, in TestReplyInput) (*mcpsdk.CallToolResult, TestReplyOutput, error) {
	accountID, err := s.account(in.AccountID)
	if err != nil {
		return nil, TestReplyOutput{}, err
	}
	if in.Message == "" {
		return nil, TestReplyOutput{}, fmt.Errorf("message is required")
	}

	var item *domain.ItemInfo
	if in.ItemTitle != "" || in.ItemPrice != "" || in.ItemDesc != "" {
		item = &domain.ItemInfo{Title: in.ItemTitle, Price: in.ItemPrice, Description: in.ItemDesc}
	}

	result, err := s.client.TestReply(accountID, in.Message, item)
	if err != nil {
		return nil, TestReplyOutput{}, err
	}
	return nil, TestReplyOutput{Reply: result.Reply, Intent: result.Intent}, nil
}
