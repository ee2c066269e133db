package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xianyu-tools/ai-reply-engine/internal/data"
)

func notifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify <chat_id> <text>",
		Short: "Send a test message to a Feishu chat with the configured app credentials",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if cfg.Feishu.AppID == "" || cfg.Feishu.AppSecret == "" {
				return fmt.Errorf("FEISHU_APP_ID and FEISHU_APP_SECRET must be set")
			}

			notifier := data.NewFeishuNotifier(cfg.Feishu.AppID, cfg.Feishu.AppSecret, args[0], cfg.Feishu.NotifyPerMinute)
			if err := notifier.SendText(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("Message sent successfully!")
			return nil
		},
	}
}
