package domain

// CompletionRequest is one prompt sent to a completion provider
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
}

// NotificationKind classifies operator notifications
type NotificationKind string

const (
	NotifyLostMessage     NotificationKind = "lost_message"
	NotifyBargainCeiling  NotificationKind = "bargain_ceiling"
	NotifyProviderFailure NotificationKind = "provider_failure"
	NotifyReply           NotificationKind = "reply"
	NotifyDigest          NotificationKind = "digest"
)

// Notification is an operator-facing event
type Notification struct {
	Kind      NotificationKind
	AccountID string
	ChatID    string
	Text      string
}

// Title returns the heading shown to operators
func (n *Notification) Title() string {
	switch n.Kind {
	case NotifyLostMessage:
		return "[ALERT] buyer message not saved"
	case NotifyBargainCeiling:
		return "[Bargain] ceiling reached"
	case NotifyProviderFailure:
		return "[ALERT] completion provider failed"
	case NotifyReply:
		return "[Reply]"
	case NotifyDigest:
		return "[Digest]"
	}
	return "[Notice]"
}
