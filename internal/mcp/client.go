package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// Client is the HTTP client for communicating with the reply engine API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new MCP client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ============ Conversation ============

// GetHistory gets the latest messages of a chat, oldest first
func (c *Client) GetHistory(chatID, accountID string, limit int) ([]domain.Message, error) {
	var result struct {
		Messages []domain.Message `json:"messages"`
	}
	path := fmt.Sprintf("/api/chats/%s/messages?account_id=%s&limit=%d", url.PathEscape(chatID), url.QueryEscape(accountID), limit)
	if err := c.get(path, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// GetBargainCount gets the number of price-intent buyer messages in a chat
func (c *Client) GetBargainCount(chatID, accountID string) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	path := fmt.Sprintf("/api/chats/%s/bargain?account_id=%s", url.PathEscape(chatID), url.QueryEscape(accountID))
	if err := c.get(path, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// ClassifyIntent classifies a buyer message
func (c *Client) ClassifyIntent(text string) (string, error) {
	var result struct {
		Intent string `json:"intent"`
	}
	if err := c.get("/api/intent?text="+url.QueryEscape(text), &result); err != nil {
		return "", err
	}
	return result.Intent, nil
}

// ============ Settings ============

// GetSettings gets the reply settings of an account; the API key comes back masked
func (c *Client) GetSettings(accountID string) (*domain.ReplySettings, error) {
	var settings domain.ReplySettings
	if err := c.get("/api/settings/"+url.PathEscape(accountID), &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// ============ Knowledge ============

// GetKnowledge gets the knowledge base of an item
func (c *Client) GetKnowledge(accountID, itemID string) (string, error) {
	var result struct {
		KnowledgeBase string `json:"knowledge_base"`
	}
	if err := c.get(knowledgePath(accountID, itemID), &result); err != nil {
		return "", err
	}
	return result.KnowledgeBase, nil
}

// SetKnowledge replaces the knowledge base of an item
func (c *Client) SetKnowledge(accountID, itemID, kb string) error {
	body := map[string]string{"knowledge_base": kb}
	return c.send(http.MethodPut, knowledgePath(accountID, itemID), body, nil)
}

func knowledgePath(accountID, itemID string) string {
	return fmt.Sprintf("/api/items/%s/%s/knowledge", url.PathEscape(accountID), url.PathEscape(itemID))
}

// ============ Reply Test ============

// TestReplyResult is the outcome of a reply preview
type TestReplyResult struct {
	Reply  string `json:"reply"`
	Intent string `json:"intent"`
}

// TestReply previews a reply without persisting anything
func (c *Client) TestReply(accountID, message string, item *domain.ItemInfo) (*TestReplyResult, error) {
	body := map[string]interface{}{"message": message}
	if item != nil {
		body["item"] = item
	}
	var result TestReplyResult
	if err := c.send(http.MethodPost, "/api/reply-test/"+url.PathEscape(accountID), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ============ HTTP Helpers ============

func (c *Client) get(path string, result interface{}) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("HTTP GET failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) send(method, path string, body interface{}, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
