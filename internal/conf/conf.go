package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/usecase"
)

// Config represents application configuration
type Config struct {
	// Store configuration
	Store StoreConfig

	// HTTP API configuration
	API APIConfig

	// Debounce timing
	Debounce DebounceValues

	// Reply generation
	Reply ReplyValues

	// Feishu operator alerts (optional)
	Feishu FeishuConfig

	// Reply delivery callback (optional)
	Callback CallbackConfig

	// Activity digest
	Digest DigestConfig

	// Prompts configuration (loaded from YAML)
	Prompts *PromptsConfig

	// Debug mode
	Debug bool
}

// StoreConfig contains SQLite configuration
type StoreConfig struct {
	DBPath string
}

// APIConfig contains HTTP API configuration
type APIConfig struct {
	Port      int
	EngineURL string // Base URL used by the MCP server and CLI to reach the API
}

// DebounceValues contains burst aggregation timing in seconds
type DebounceValues struct {
	WaitSeconds             int
	ArrivalSpacingSeconds   int
	ExternalDebounceSeconds int
	MarginSeconds           int
}

// ReplyValues contains reply generation settings
type ReplyValues struct {
	HistoryLimit           int // Turns loaded from the store
	PromptHistoryTurns     int // Turns rendered into the prompt
	MaxTokens              int
	Temperature            float64
	ProviderTimeoutSeconds int
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID           string
	AppSecret       string
	AlertChatID     string
	NotifyPerMinute int
}

// CallbackConfig contains reply webhook configuration
type CallbackConfig struct {
	URL string
}

// DigestConfig contains activity digest configuration
type DigestConfig struct {
	IntervalMinutes int // 0 disables the digest
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Database path
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".xianyu-reply", "reply.db")
	}

	apiPort := intFromEnv("API_PORT", 9876)

	temperature := 0.7
	if val := os.Getenv("REPLY_TEMPERATURE"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			temperature = parsed
		}
	}

	// Load prompts from YAML
	promptsConfigPath := os.Getenv("PROMPTS_CONFIG_PATH")
	promptsConfig, err := LoadPromptsConfig(promptsConfigPath)
	if err != nil {
		fmt.Printf("[Config] %v, using defaults\n", err)
		promptsConfig = DefaultPromptsConfig()
	}

	return &Config{
		Store: StoreConfig{
			DBPath: dbPath,
		},
		API: APIConfig{
			Port:      apiPort,
			EngineURL: EngineURLFromEnv(),
		},
		Debounce: DebounceValues{
			WaitSeconds:             intFromEnv("DEBOUNCE_WAIT_SECONDS", 10),
			ArrivalSpacingSeconds:   intFromEnv("ARRIVAL_SPACING_SECONDS", 10),
			ExternalDebounceSeconds: intFromEnv("EXTERNAL_DEBOUNCE_SECONDS", 1),
			MarginSeconds:           intFromEnv("STALENESS_MARGIN_SECONDS", 5),
		},
		Reply: ReplyValues{
			HistoryLimit:           intFromEnv("HISTORY_LIMIT", 20),
			PromptHistoryTurns:     intFromEnv("PROMPT_HISTORY_TURNS", 10),
			MaxTokens:              intFromEnv("REPLY_MAX_TOKENS", 100),
			Temperature:            temperature,
			ProviderTimeoutSeconds: intFromEnv("PROVIDER_TIMEOUT_SECONDS", 30),
		},
		Feishu: FeishuConfig{
			AppID:           os.Getenv("FEISHU_APP_ID"),
			AppSecret:       os.Getenv("FEISHU_APP_SECRET"),
			AlertChatID:     os.Getenv("FEISHU_ALERT_CHAT_ID"),
			NotifyPerMinute: intFromEnv("NOTIFY_PER_MINUTE", 20),
		},
		Callback: CallbackConfig{
			URL: os.Getenv("REPLY_CALLBACK_URL"),
		},
		Digest: DigestConfig{
			IntervalMinutes: intFromEnv("DIGEST_INTERVAL_MINUTES", 60),
		},
		Prompts: promptsConfig,
		Debug:   os.Getenv("DEBUG") == "true",
	}
}

// EngineURLFromEnv returns the API base URL for clients of a running engine
func EngineURLFromEnv() string {
	if url := os.Getenv("ENGINE_API_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("http://127.0.0.1:%d", intFromEnv("API_PORT", 9876))
}

func intFromEnv(name string, def int) int {
	if val := os.Getenv(name); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// ToDebounceConfig converts to the usecase debounce timing
func (c *DebounceValues) ToDebounceConfig() usecase.DebounceConfig {
	return usecase.DebounceConfig{
		Wait:             time.Duration(c.WaitSeconds) * time.Second,
		ArrivalSpacing:   time.Duration(c.ArrivalSpacingSeconds) * time.Second,
		ExternalDebounce: time.Duration(c.ExternalDebounceSeconds) * time.Second,
		Margin:           time.Duration(c.MarginSeconds) * time.Second,
	}
}

// ToReplyConfig converts to reply orchestration configuration
func (c *Config) ToReplyConfig() usecase.ReplyConfig {
	return usecase.ReplyConfig{
		Debounce:     c.Debounce.ToDebounceConfig(),
		HistoryLimit: c.Reply.HistoryLimit,
		MaxTokens:    c.Reply.MaxTokens,
		Temperature:  float32(c.Reply.Temperature),
	}
}

// ToIntentConfig converts to classifier keyword tables
func (c *Config) ToIntentConfig() usecase.IntentConfig {
	if c.Prompts == nil {
		return usecase.DefaultIntentConfig()
	}
	return usecase.IntentConfig{
		PriceKeywords: c.Prompts.Intent.PriceKeywords,
		TechKeywords:  c.Prompts.Intent.TechKeywords,
	}
}

// ToPromptConfig converts to prompt configuration
func (c *Config) ToPromptConfig() usecase.PromptConfig {
	if c.Prompts == nil {
		return usecase.DefaultPromptConfig
	}
	return c.Prompts.ToPromptConfig()
}

// ProviderTimeout returns the per-call completion timeout
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Reply.ProviderTimeoutSeconds) * time.Second
}

// DigestInterval returns the digest period, zero when disabled
func (c *Config) DigestInterval() time.Duration {
	if c.Digest.IntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(c.Digest.IntervalMinutes) * time.Minute
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Debounce.WaitSeconds <= 0 {
		return &ConfigError{Field: "DEBOUNCE_WAIT_SECONDS", Message: "must be positive"}
	}
	if c.Debounce.MarginSeconds <= 0 {
		return &ConfigError{Field: "STALENESS_MARGIN_SECONDS", Message: "must be positive"}
	}
	if c.Debounce.ArrivalSpacingSeconds < 0 || c.Debounce.ExternalDebounceSeconds < 0 {
		return &ConfigError{Field: "ARRIVAL_SPACING_SECONDS/EXTERNAL_DEBOUNCE_SECONDS", Message: "must not be negative"}
	}
	if c.Reply.MaxTokens <= 0 {
		return &ConfigError{Field: "REPLY_MAX_TOKENS", Message: "must be positive"}
	}
	if c.Reply.Temperature < 0 || c.Reply.Temperature > 2 {
		return &ConfigError{Field: "REPLY_TEMPERATURE", Message: "must be between 0 and 2"}
	}
	if c.Reply.ProviderTimeoutSeconds <= 0 {
		return &ConfigError{Field: "PROVIDER_TIMEOUT_SECONDS", Message: "must be positive"}
	}
	if c.Feishu.AppID != "" && c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_SECRET", Message: "required when FEISHU_APP_ID is set"}
	}
	return nil
}

// FeishuEnabled reports whether Feishu alerts can be sent
func (c *Config) FeishuEnabled() bool {
	return c.Feishu.AppID != "" && c.Feishu.AppSecret != "" && c.Feishu.AlertChatID != ""
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
