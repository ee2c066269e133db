package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
)

// PromptConfig contains prompt configuration
type PromptConfig struct {
	SystemPrompts map[domain.Intent]string // Built-in system prompt per intent

	// UserPromptTemplate supports {{item_info}}, {{history}}, {{bargain_count}},
	// {{max_bargain_rounds}}, {{max_discount_percent}}, {{max_discount_amount}}, {{message}}
	UserPromptTemplate string

	RefusalText string // Fixed reply once the bargain ceiling is reached
}

// DefaultPromptConfig contains default prompt configuration
var DefaultPromptConfig = PromptConfig{
	SystemPrompts: map[domain.Intent]string{
		domain.IntentPrice: `你是一位经验丰富的销售专家，擅长议价。
语言要求：简短直接，每句≤10字，总字数≤40字。
议价策略：
1. 根据议价次数递减优惠：第1次小幅优惠，第2次中等优惠，第3次最大优惠
2. 接近最大议价轮数时要坚持底线，强调商品价值
3. 优惠不能超过设定的最大百分比和金额
4. 语气要友好但坚定，突出商品优势
注意：结合商品信息、对话历史和议价设置，给出合适的回复。`,
		domain.IntentTech: `你是一位技术专家，专业解答产品相关问题。
语言要求：简短专业，每句≤10字，总字数≤40字。
回答重点：产品功能、使用方法、注意事项。
注意：基于商品信息回答，避免过度承诺。`,
		domain.IntentDefault: `你是一位资深电商卖家，提供优质客服。
语言要求：简短友好，每句≤10字，总字数≤40字。
回答重点：商品介绍、物流、售后等常见问题。
注意：结合商品信息，给出实用建议。`,
	},
	UserPromptTemplate: `商品信息：
{{item_info}}

对话历史：
{{history}}

议价设置：
- 当前议价次数：{{bargain_count}}
- 最大议价轮数：{{max_bargain_rounds}}
- 最大优惠百分比：{{max_discount_percent}}%
- 最大优惠金额：{{max_discount_amount}}元

用户消息：{{message}}

请根据以上信息生成回复：`,
	RefusalText: "抱歉，这个价格已经是最优惠的了，不能再便宜了哦！",
}

// PromptInput is everything the user prompt is assembled from
type PromptInput struct {
	Item         *domain.ItemInfo
	History      []*domain.Message // Oldest first
	BargainCount int
	Settings     *domain.ReplySettings
	Message      string
}

// PromptBuilder assembles system and user prompts
type PromptBuilder struct {
	config       PromptConfig
	historyTurns int
}

// NewPromptBuilder creates a prompt builder.
// historyTurns is how many trailing history entries are rendered into the prompt.
func NewPromptBuilder(config PromptConfig, historyTurns int) *PromptBuilder {
	if config.SystemPrompts == nil {
		config.SystemPrompts = DefaultPromptConfig.SystemPrompts
	}
	if config.UserPromptTemplate == "" {
		config.UserPromptTemplate = DefaultPromptConfig.UserPromptTemplate
	}
	if config.RefusalText == "" {
		config.RefusalText = DefaultPromptConfig.RefusalText
	}
	return &PromptBuilder{config: config, historyTurns: historyTurns}
}

// RefusalText returns the scripted bargain refusal
func (b *PromptBuilder) RefusalText() string {
	return b.config.RefusalText
}

// SystemPrompt returns the account override for the intent, else the built-in prompt
func (b *PromptBuilder) SystemPrompt(intent domain.Intent, settings *domain.ReplySettings) string {
	if settings != nil {
		if p, ok := settings.CustomPrompt(intent); ok {
			return p
		}
	}
	if p, ok := b.config.SystemPrompts[intent]; ok {
		return p
	}
	return b.config.SystemPrompts[domain.IntentDefault]
}

// UserPrompt renders the user prompt template
func (b *PromptBuilder) UserPrompt(in *PromptInput) string {
	settings := in.Settings
	if settings == nil {
		settings = domain.DefaultReplySettings("")
	}

	r := strings.NewReplacer(
		"{{item_info}}", FormatItem(in.Item),
		"{{history}}", b.FormatHistory(in.History),
		"{{bargain_count}}", strconv.Itoa(in.BargainCount),
		"{{max_bargain_rounds}}", strconv.Itoa(settings.MaxBargainRounds),
		"{{max_discount_percent}}", formatNumber(settings.MaxDiscountPercent),
		"{{max_discount_amount}}", formatNumber(settings.MaxDiscountAmount),
		"{{message}}", in.Message,
	)
	return r.Replace(b.config.UserPromptTemplate)
}

// FormatItem renders listing metadata plus the optional knowledge base
func FormatItem(item *domain.ItemInfo) string {
	title, price, desc, kb := "未知", "未知", "无", ""
	if item != nil {
		if item.Title != "" {
			title = item.Title
		}
		if item.Price != "" {
			price = item.Price
		}
		if item.Description != "" {
			desc = item.Description
		}
		kb = item.KnowledgeBase
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("商品标题: %s\n", title))
	sb.WriteString(fmt.Sprintf("商品价格: %s元\n", price))
	sb.WriteString(fmt.Sprintf("商品描述: %s\n", desc))
	if kb != "" {
		sb.WriteString("\n【知识库】\n")
		sb.WriteString(kb)
	}
	return sb.String()
}

// FormatHistory renders the trailing history entries as "role: content" lines
func (b *PromptBuilder) FormatHistory(history []*domain.Message) string {
	if b.historyTurns > 0 && len(history) > b.historyTurns {
		history = history[len(history)-b.historyTurns:]
	}

	lines := make([]string, 0, len(history))
	for _, msg := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Role, msg.Content))
	}
	return strings.Join(lines, "\n")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
