package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/usecase"
)

// PromptsConfig contains keyword tables and prompts loaded from YAML
type PromptsConfig struct {
	Intent             IntentKeywords `yaml:"intent"`
	Prompts            SystemPrompts  `yaml:"prompts"`
	UserPromptTemplate string         `yaml:"user_prompt_template"`
	RefusalText        string         `yaml:"refusal_text"`
}

// IntentKeywords contains the classifier keyword tables
type IntentKeywords struct {
	PriceKeywords []string `yaml:"price_keywords"`
	TechKeywords  []string `yaml:"tech_keywords"`
}

// SystemPrompts contains the built-in system prompt per intent
type SystemPrompts struct {
	Price   string `yaml:"price"`
	Tech    string `yaml:"tech"`
	Default string `yaml:"default"`
}

// LoadPromptsConfig loads prompts configuration from YAML file
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"/etc/xianyu-reply/prompts.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	var err error

	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			loadedPath = p
			break
		}
	}

	if data == nil {
		// Return default config if no file found
		fmt.Println("[Config] No prompts.yaml found, using defaults")
		return DefaultPromptsConfig(), nil
	}

	fmt.Printf("[Config] Loading prompts from: %s\n", loadedPath)

	var config PromptsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse prompts.yaml: %w", err)
	}

	// Fill in defaults for empty values
	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *PromptsConfig) fillDefaults() {
	defaults := DefaultPromptsConfig()

	if len(c.Intent.PriceKeywords) == 0 {
		c.Intent.PriceKeywords = defaults.Intent.PriceKeywords
	}
	if len(c.Intent.TechKeywords) == 0 {
		c.Intent.TechKeywords = defaults.Intent.TechKeywords
	}

	if c.Prompts.Price == "" {
		c.Prompts.Price = defaults.Prompts.Price
	}
	if c.Prompts.Tech == "" {
		c.Prompts.Tech = defaults.Prompts.Tech
	}
	if c.Prompts.Default == "" {
		c.Prompts.Default = defaults.Prompts.Default
	}

	if c.UserPromptTemplate == "" {
		c.UserPromptTemplate = defaults.UserPromptTemplate
	}
	if c.RefusalText == "" {
		c.RefusalText = defaults.RefusalText
	}
}

// ToPromptConfig converts to the usecase prompt configuration
func (c *PromptsConfig) ToPromptConfig() usecase.PromptConfig {
	return usecase.PromptConfig{
		SystemPrompts: map[domain.Intent]string{
			domain.IntentPrice:   c.Prompts.Price,
			domain.IntentTech:    c.Prompts.Tech,
			domain.IntentDefault: c.Prompts.Default,
		},
		UserPromptTemplate: c.UserPromptTemplate,
		RefusalText:        c.RefusalText,
	}
}

// DefaultPromptsConfig returns the built-in keyword tables and prompts
func DefaultPromptsConfig() *PromptsConfig {
	intent := usecase.DefaultIntentConfig()
	prompts := usecase.DefaultPromptConfig
	return &PromptsConfig{
		Intent: IntentKeywords{
			PriceKeywords: intent.PriceKeywords,
			TechKeywords:  intent.TechKeywords,
		},
		Prompts: SystemPrompts{
			Price:   prompts.SystemPrompts[domain.IntentPrice],
			Tech:    prompts.SystemPrompts[domain.IntentTech],
			Default: prompts.SystemPrompts[domain.IntentDefault],
		},
		UserPromptTemplate: prompts.UserPromptTemplate,
		RefusalText:        prompts.RefusalText,
	}
}
