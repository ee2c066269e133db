package domain

import "time"

// Role is the author of a conversation turn
type Role string

const (
	RoleUser      Role = "user"      // Buyer
	RoleAssistant Role = "assistant" // Seller reply produced by the engine
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message represents a single conversational turn.
// Messages are immutable once written; the store assigns ID and CreatedAt.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	AccountID string    `json:"account_id"` // Seller identity
	BuyerID   string    `json:"buyer_id"`
	ItemID    string    `json:"item_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Intent    Intent    `json:"intent,omitempty"` // Set at creation only
	CreatedAt time.Time `json:"created_at"`
}

// IsBuyer checks if the message was sent by the buyer
func (m *Message) IsBuyer() bool {
	return m.Role == RoleUser
}

// SameInstant reports whether two store timestamps are identical.
// Store timestamps carry microsecond resolution.
func SameInstant(a, b time.Time) bool {
	return a.UnixMicro() == b.UnixMicro()
}

// Preview returns the first n runes of content, for log lines
func Preview(content string, n int) string {
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	return string(runes[:n]) + "..."
}

// SortOrder is the ordering of a store query by creation time
type SortOrder int

const (
	OrderAsc SortOrder = iota
	OrderDesc
)

// MessageQuery filters a conversation range query
type MessageQuery struct {
	ChatID    string
	AccountID string
	Role      Role          // Empty matches any role
	Since     time.Duration // Only messages newer than now-Since; zero means unbounded
	Limit     int           // Zero means unbounded
	Order     SortOrder
}

// AccountActivity summarizes traffic for one seller account over a period
type AccountActivity struct {
	AccountID string `json:"account_id"`
	Inbound   int    `json:"inbound"` // Buyer messages
	Replies   int    `json:"replies"` // Assistant messages
	Chats     int    `json:"chats"`   // Distinct chats
}
