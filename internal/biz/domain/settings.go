package domain

import (
	"strings"
	"time"
)

// Settings defaults applied when an account has no stored row or a field is unset
const (
	DefaultMaxBargainRounds   = 3
	DefaultMaxDiscountPercent = 10.0
	DefaultMaxDiscountAmount  = 100.0
)

// ReplySettings is the per-account AI reply configuration
type ReplySettings struct {
	AccountID          string            `json:"account_id"`
	Enabled            bool              `json:"enabled"`
	APIKey             string            `json:"api_key"`
	BaseURL            string            `json:"base_url"`
	ModelName          string            `json:"model_name"`
	MaxBargainRounds   int               `json:"max_bargain_rounds"`
	MaxDiscountPercent float64           `json:"max_discount_percent"`
	MaxDiscountAmount  float64           `json:"max_discount_amount"`
	CustomPrompts      map[string]string `json:"custom_prompts,omitempty"` // Keyed by intent
	UpdatedAt          time.Time         `json:"updated_at"`
}

// DefaultReplySettings returns the settings of an account that was never configured
func DefaultReplySettings(accountID string) *ReplySettings {
	return &ReplySettings{
		AccountID:          accountID,
		MaxBargainRounds:   DefaultMaxBargainRounds,
		MaxDiscountPercent: DefaultMaxDiscountPercent,
		MaxDiscountAmount:  DefaultMaxDiscountAmount,
		CustomPrompts:      map[string]string{},
	}
}

// CustomPrompt returns the configured system prompt override for an intent
func (s *ReplySettings) CustomPrompt(intent Intent) (string, bool) {
	if s.CustomPrompts == nil {
		return "", false
	}
	p, ok := s.CustomPrompts[string(intent)]
	if !ok || strings.TrimSpace(p) == "" {
		return "", false
	}
	return p, true
}

// MaskedAPIKey returns the key with everything but the last 4 characters hidden
func (s *ReplySettings) MaskedAPIKey() string {
	if s.APIKey == "" {
		return ""
	}
	if len(s.APIKey) <= 4 {
		return "***"
	}
	return "***" + s.APIKey[len(s.APIKey)-4:]
}

// Clone returns a deep copy
func (s *ReplySettings) Clone() *ReplySettings {
	c := *s
	c.CustomPrompts = make(map[string]string, len(s.CustomPrompts))
	for k, v := range s.CustomPrompts {
		c.CustomPrompts[k] = v
	}
	return &c
}

// SettingsPatch is a partial settings update; nil fields are left unchanged
type SettingsPatch struct {
	Enabled            *bool             `json:"enabled,omitempty"`
	APIKey             *string           `json:"api_key,omitempty"`
	BaseURL            *string           `json:"base_url,omitempty"`
	ModelName          *string           `json:"model_name,omitempty"`
	MaxBargainRounds   *int              `json:"max_bargain_rounds,omitempty"`
	MaxDiscountPercent *float64          `json:"max_discount_percent,omitempty"`
	MaxDiscountAmount  *float64          `json:"max_discount_amount,omitempty"`
	CustomPrompts      map[string]string `json:"custom_prompts,omitempty"` // Replaces the whole map when non-nil
}

// IsEmpty reports whether the patch changes nothing
func (p *SettingsPatch) IsEmpty() bool {
	return p.Enabled == nil && p.APIKey == nil && p.BaseURL == nil && p.ModelName == nil &&
		p.MaxBargainRounds == nil && p.MaxDiscountPercent == nil && p.MaxDiscountAmount == nil &&
		p.CustomPrompts == nil
}

// Apply merges the patch into s. Credential fields are whitespace-trimmed.
func (p *SettingsPatch) Apply(s *ReplySettings) {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.APIKey != nil {
		s.APIKey = strings.TrimSpace(*p.APIKey)
	}
	if p.BaseURL != nil {
		s.BaseURL = strings.TrimSpace(*p.BaseURL)
	}
	if p.ModelName != nil {
		s.ModelName = strings.TrimSpace(*p.ModelName)
	}
	if p.MaxBargainRounds != nil {
		s.MaxBargainRounds = *p.MaxBargainRounds
	}
	if p.MaxDiscountPercent != nil {
		s.MaxDiscountPercent = *p.MaxDiscountPercent
	}
	if p.MaxDiscountAmount != nil {
		s.MaxDiscountAmount = *p.MaxDiscountAmount
	}
	if p.CustomPrompts != nil {
		s.CustomPrompts = make(map[string]string, len(p.CustomPrompts))
		for k, v := range p.CustomPrompts {
			s.CustomPrompts[strings.TrimSpace(k)] = v
		}
	}
}
