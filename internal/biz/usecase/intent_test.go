package usecase

import (
	"testing"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

func TestClassify_DefaultTables(t *testing.T) {
	c := NewIntentClassifier(DefaultIntentConfig())

	tests := []struct {
		text string
		want domain.Intent
	}{
		{"能便宜点吗", domain.IntentPrice},
		{"多少钱包邮", domain.IntentPrice},
		{"能到100吗", domain.IntentPrice},
		{"这个怎么用", domain.IntentTech},
		{"有说明书吗", domain.IntentTech},
		{"你好，还在吗", domain.IntentDefault},
		{"", domain.IntentDefault},
		// price wins when both tables match
		{"参数不错，价格呢", domain.IntentPrice},
	}

	for _, tt := range tests {
		if got := c.Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q): expected %s, got %s", tt.text, tt.want, got)
		}
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	c := NewIntentClassifier(IntentConfig{
		PriceKeywords: []string{"Discount "},
		TechKeywords:  []string{"GPU"},
	})

	if got := c.Classify("any DISCOUNT today?"); got != domain.IntentPrice {
		t.Errorf("expected price, got %s", got)
	}
	if got := c.Classify("which gpu is it"); got != domain.IntentTech {
		t.Errorf("expected tech, got %s", got)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewIntentClassifier(DefaultIntentConfig())
	first := c.Classify("最低多少")
	for i := 0; i < 100; i++ {
		if got := c.Classify("最低多少"); got != first {
			t.Fatalf("classification changed on call %d: %s vs %s", i, got, first)
		}
	}
}

func TestClassify_BlankKeywordsIgnored(t *testing.T) {
	c := NewIntentClassifier(IntentConfig{PriceKeywords: []string{"", "  "}})

	if got := c.Classify("hello"); got != domain.IntentDefault {
		t.Errorf("blank keyword should never match, got %s", got)
	}
	if n := len(c.Keywords().PriceKeywords); n != 0 {
		t.Errorf("expected blank keywords to be dropped, got %d", n)
	}
}
