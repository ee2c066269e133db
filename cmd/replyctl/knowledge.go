package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xianyu-tools/ai-reply-engine/internal/biz/usecase"
)

func knowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "kb",
		Aliases: []string{"knowledge"},
		Short:   "Export and import item knowledge bases",
	}
	cmd.AddCommand(knowledgeExportCmd())
	cmd.AddCommand(knowledgeImportCmd())
	return cmd
}

func knowledgeExportCmd() *cobra.Command {
	var (
		account string
		out     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export non-empty knowledge bases as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repos, err := openStore()
			if err != nil {
				return err
			}
			defer repos.Close()

			entries, err := usecase.NewKnowledgeUsecase(repos.Item).Export(cmd.Context(), account)
			if err != nil {
				return err
			}
			if out == "" {
				return printJSON(entries)
			}

			body, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode export: %w", err)
			}
			if err := os.WriteFile(out, body, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Printf("Exported %d items to %s\n", len(entries), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "only export this account (default: all accounts)")
	cmd.Flags().StringVar(&out, "out", "", "write to this file instead of stdout")
	return cmd
}

func knowledgeImportCmd() *cobra.Command {
	var (
		account string
		file    string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import knowledge bases from a JSON object of item_id to text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			var entries map[string]string
			if err := json.Unmarshal(raw, &entries); err != nil {
				return fmt.Errorf("failed to parse %s: %w", file, err)
			}

			repos, err := openStore()
			if err != nil {
				return err
			}
			defer repos.Close()

			result, err := usecase.NewKnowledgeUsecase(repos.Item).Import(cmd.Context(), account, entries)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d, failed %d\n", result.Success, result.Failed)
			for _, id := range result.Missing {
				fmt.Printf("  unknown item: %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account the items belong to")
	cmd.Flags().StringVar(&file, "file", "", "JSON file to import")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
