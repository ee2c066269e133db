package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/usecase"
)

func promptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage per-account custom system prompts",
	}
	cmd.AddCommand(promptsSetCmd())
	return cmd
}

func promptsSetCmd() *cobra.Command {
	var (
		intent string
		file   string
	)

	cmd := &cobra.Command{
		Use:   "set <account_id>",
		Short: "Set the system prompt used for one intent; an empty file clears it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.Intent(intent).Valid() {
				return fmt.Errorf("unknown intent %q (price, tech, default)", intent)
			}
			text, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}

			repos, err := openStore()
			if err != nil {
				return err
			}
			defer repos.Close()

			settings, err := usecase.NewSettingsUsecase(repos.Settings).SetCustomPrompt(cmd.Context(), args[0], domain.Intent(intent), string(text))
			if err != nil {
				return err
			}
			fmt.Printf("Custom prompts for %s: %d set\n", settings.AccountID, len(settings.CustomPrompts))
			return nil
		},
	}

	cmd.Flags().StringVar(&intent, "intent", "", "intent the prompt applies to (price, tech, default)")
	cmd.Flags().StringVar(&file, "file", "", "file containing the prompt text")
	_ = cmd.MarkFlagRequired("intent")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
