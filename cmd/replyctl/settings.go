package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/domain"
	"github.com/xianyu-tools/ai-reply-engine/internal/biz/usecase"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change per-account reply settings",
	}
	cmd.AddCommand(settingsGetCmd())
	cmd.AddCommand(settingsListCmd())
	cmd.AddCommand(settingsSetCmd())
	return cmd
}

func settingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <account_id>",
		Short: "Show the settings of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repos, err := openStore()
			if err != nil {
				return err
			}
			defer repos.Close()

			settings, err := usecase.NewSettingsUsecase(repos.Settings).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(maskKey(settings))
		},
	}
}

func settingsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every configured account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repos, err := openStore()
			if err != nil {
				return err
			}
			defer repos.Close()

			all, err := usecase.NewSettingsUsecase(repos.Settings).List(cmd.Context())
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Println("No accounts configured.")
				return nil
			}
			fmt.Printf("%-20s %-8s %-16s %s\n", "ACCOUNT", "ENABLED", "MODEL", "MAX ROUNDS")
			for _, s := range all {
				fmt.Printf("%-20s %-8v %-16s %d\n", s.AccountID, s.Enabled, s.ModelName, s.MaxBargainRounds)
			}
			return nil
		},
	}
}

func settingsSetCmd() *cobra.Command {
	var (
		enabled     bool
		apiKey      string
		baseURL     string
		model       string
		maxRounds   int
		maxPercent  float64
		maxDiscount float64
	)

	cmd := &cobra.Command{
		Use:   "set <account_id>",
		Short: "Change settings; only the flags given are updated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			patch := &domain.SettingsPatch{}
			if flags.Changed("enabled") {
				patch.Enabled = &enabled
			}
			if flags.Changed("api-key") {
				patch.APIKey = &apiKey
			}
			if flags.Changed("base-url") {
				patch.BaseURL = &baseURL
			}
			if flags.Changed("model") {
				patch.ModelName = &model
			}
			if flags.Changed("max-rounds") {
				patch.MaxBargainRounds = &maxRounds
			}
			if flags.Changed("max-percent") {
				patch.MaxDiscountPercent = &maxPercent
			}
			if flags.Changed("max-amount") {
				patch.MaxDiscountAmount = &maxDiscount
			}
			if patch.IsEmpty() {
				return fmt.Errorf("no settings given")
			}

			repos, err := openStore()
			if err != nil {
				return err
			}
			defer repos.Close()

			settings, err := usecase.NewSettingsUsecase(repos.Settings).Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return printJSON(maskKey(settings))
		},
	}

	cmd.Flags().BoolVar(&enabled, "enabled", false, "enable AI replies for the account")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "provider API key")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "provider base URL")
	cmd.Flags().StringVar(&model, "model", "", "model name (gemini-*, dashscope, or any OpenAI-compatible model)")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", domain.DefaultMaxBargainRounds, "bargain rounds before replies stop negotiating")
	cmd.Flags().Float64Var(&maxPercent, "max-percent", domain.DefaultMaxDiscountPercent, "maximum discount percent")
	cmd.Flags().Float64Var(&maxDiscount, "max-amount", domain.DefaultMaxDiscountAmount, "maximum discount amount")
	return cmd
}

func maskKey(settings *domain.ReplySettings) *domain.ReplySettings {
	c := settings.Clone()
	c.APIKey = settings.MaskedAPIKey()
	return c
}
