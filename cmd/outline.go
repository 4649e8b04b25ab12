package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	outlineAccount string
	outlineDraft   string
)

var outlineCmd = &cobra.Command{
	Use:   "outline",
	Short: "Resolve a draft's outline from its candidate articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orch.ExtractOutline(ctx, outlineAccount, outlineDraft)
		if err != nil {
			return err
		}

		if !result.Found() {
			fmt.Println(result.Text)
			return nil
		}

		fmt.Printf("source: %s\n\n%s\n", result.SourceDocument, result.Text)
		return nil
	},
}

func init() {
	outlineCmd.Flags().StringVar(&outlineAccount, "account", "", "account ID (required)")
	outlineCmd.Flags().StringVar(&outlineDraft, "draft", "", "draft ID (required)")
	_ = outlineCmd.MarkFlagRequired("account")
	_ = outlineCmd.MarkFlagRequired("draft")
	rootCmd.AddCommand(outlineCmd)
}
