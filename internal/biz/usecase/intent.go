package usecase

import (
	"strings"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// IntentConfig contains the keyword tables used for local intent detection
type IntentConfig struct {
	PriceKeywords []string
	TechKeywords  []string
}

// DefaultIntentConfig returns the built-in keyword tables
func DefaultIntentConfig() IntentConfig {
	return IntentConfig{
		PriceKeywords: []string{
			"便宜", "优惠", "刀", "降价", "包邮", "价格", "多少钱", "能少", "还能", "最低", "底价",
			"实诚价", "到100", "能到", "包个邮", "给个价", "什么价",
		},
		TechKeywords: []string{
			"怎么用", "参数", "坏了", "故障", "设置", "说明书", "功能", "用法", "教程", "驱动",
		},
	}
}

// IntentClassifier maps buyer text to an intent by keyword matching.
// Tables are fixed at construction; Classify is pure and safe for concurrent use.
type IntentClassifier struct {
	price []string
	tech  []string
}

// NewIntentClassifier creates a classifier from the given keyword tables
func NewIntentClassifier(cfg IntentConfig) *IntentClassifier {
	return &IntentClassifier{
		price: normalizeKeywords(cfg.PriceKeywords),
		tech:  normalizeKeywords(cfg.TechKeywords),
	}
}

// Classify returns price if any price keyword matches, else tech, else default.
// Matching is a case-insensitive substring test.
func (c *IntentClassifier) Classify(text string) domain.Intent {
	lower := strings.ToLower(text)
	if containsAny(lower, c.price) {
		return domain.IntentPrice
	}
	if containsAny(lower, c.tech) {
		return domain.IntentTech
	}
	return domain.IntentDefault
}

// Keywords returns copies of the active tables
func (c *IntentClassifier) Keywords() IntentConfig {
	return IntentConfig{
		PriceKeywords: append([]string(nil), c.price...),
		TechKeywords:  append([]string(nil), c.tech...),
	}
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
