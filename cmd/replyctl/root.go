package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/xianyu-tools/ai-reply-engine/internal/conf"
	"github.com/xianyu-tools/ai-reply-engine/internal/data"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "replyctl",
	Short: "Admin CLI for the Xianyu AI reply engine",
	Long:  "replyctl manages per-account reply settings, custom prompts and item knowledge bases directly in the engine's SQLite store.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: $DB_PATH or ~/.xianyu-reply/reply.db)")

	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(promptsCmd())
	rootCmd.AddCommand(knowledgeCmd())
	rootCmd.AddCommand(notifyCmd())
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() *conf.Config {
	cfg := conf.LoadFromEnv()
	if dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	return cfg
}

func openStore() (*data.Repositories, error) {
	cfg := loadConfig()
	repos, err := data.NewRepositories(cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Store.DBPath, err)
	}
	return repos, nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
