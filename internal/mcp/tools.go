package mcp

import (
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerTools registers all reply engine MCP tools
func (s *Server) registerTools() {
	// Conversation tools
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "reply_get_history",
		Description: "Get the recent buyer and assistant messages of a chat, oldest first.",
	}, s.handleGetHistory)

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "reply_get_bargain_count",
		Description: "Get how many price-related buyer messages a chat has had. Replies stop negotiating once this reaches the account's max bargain rounds.",
	}, s.handleGetBargainCount)

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "reply_classify_intent",
		Description: "Classify a buyer message as price, tech or default using the engine's keyword rules.",
	}, s.handleClassifyIntent)

	// Settings tools
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "reply_get_settings",
		Description: "Get the AI reply settings of a seller account. The API key is masked.",
	}, s.handleGetSettings)

	// Knowledge base tools
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "reply_get_knowledge",
		Description: "Get the seller's free-text knowledge base for an item.",
	}, s.handleGetKnowledge)

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "reply_set_knowledge",
		Description: "Replace the knowledge base of an item. Use when the seller says 'remember that this item ...', 'tell buyers that ...', etc. The item must already be known to the engine.",
	}, s.handleSetKnowledge)

	// Reply preview
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "reply_test",
		Description: "Preview the reply the engine would send for a buyer message. Nothing is stored and no debounce is applied.",
	}, s.handleTestReply)
}

// ============ Tool Inputs ============

// HistoryInput is the input for reply_get_history
type HistoryInput struct {
	ChatID    string `json:"chat_id" jsonschema:"The chat to read"`
	AccountID string `json:"account_id,omitempty" jsonschema:"Seller account id. Uses the default account if not specified."`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum number of messages to retrieve (default 20)"`
}

// ChatInput is the input for tools that address a single chat
type ChatInput struct {
	ChatID    string `json:"chat_id" jsonschema:"The chat to inspect"`
	AccountID string `json:"account_id,omitempty" jsonschema:"Seller account id. Uses the default account if not specified."`
}

// ClassifyInput is the input for reply_classify_intent
type ClassifyInput struct {
	Text string `json:"text" jsonschema:"The buyer message to classify"`
}

// AccountInput is the input for reply_get_settings
type AccountInput struct {
	AccountID string `json:"account_id,omitempty" jsonschema:"Seller account id. Uses the default account if not specified."`
}

// KnowledgeInput is the input for reply_get_knowledge
type KnowledgeInput struct {
	AccountID string `json:"account_id,omitempty" jsonschema:"Seller account id. Uses the default account if not specified."`
	ItemID    string `json:"item_id" jsonschema:"The item id"`
}

// SetKnowledgeInput is the input for reply_set_knowledge
type SetKnowledgeInput struct {
	AccountID     string `json:"account_id,omitempty" jsonschema:"Seller account id. Uses the default account if not specified."`
	ItemID        string `json:"item_id" jsonschema:"The item id"`
	KnowledgeBase string `json:"knowledge_base" jsonschema:"The full knowledge base text; replaces the existing one"`
}

// TestReplyInput is the input for reply_test
type TestReplyInput struct {
	AccountID string `json:"account_id,omitempty" jsonschema:"Seller account id. Uses the default account if not specified."`
	Message   string `json:"message" jsonschema:"The buyer message"`
	ItemTitle string `json:"item_title,omitempty" jsonschema:"Item title to include in the prompt"`
	ItemPrice string `json:"item_price,omitempty" jsonschema:"Item price to include in the prompt"`
	ItemDesc  string `json:"item_desc,omitempty" jsonschema:"Item description to include in the prompt"`
}

// ============ Tool Outputs ============

// HistoryMessage is one message returned by reply_get_history
type HistoryMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Intent    string `json:"intent,omitempty"`
	CreatedAt string `json:"created_at"`
}

// HistoryOutput is the output for reply_get_history
type HistoryOutput struct {
	Messages []HistoryMessage `json:"messages"`
}

// CountOutput is the output for reply_get_bargain_count
type CountOutput struct {
	Count int `json:"count"`
}

// IntentOutput is the output for reply_classify_intent
type IntentOutput struct {
	Intent string `json:"intent"`
}

// SettingsOutput is the output for reply_get_settings
type SettingsOutput struct {
	AccountID          string            `json:"account_id"`
	Enabled            bool              `json:"enabled"`
	APIKey             string            `json:"api_key"`
	BaseURL            string            `json:"base_url"`
	ModelName          string            `json:"model_name"`
	MaxBargainRounds   int               `json:"max_bargain_rounds"`
	MaxDiscountPercent float64           `json:"max_discount_percent"`
	MaxDiscountAmount  float64           `json:"max_discount_amount"`
	CustomPrompts      map[string]string `json:"custom_prompts,omitempty"`
}

// KnowledgeOutput is the output for reply_get_knowledge
type KnowledgeOutput struct {
	ItemID        string `json:"item_id"`
	KnowledgeBase string `json:"knowledge_base"`
}

// SuccessOutput is the output for tools that only report success
type SuccessOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TestReplyOutput is the output for reply_test
type TestReplyOutput struct {
	Reply  string `json:"reply"`
	Intent string `json:"intent"`
}
