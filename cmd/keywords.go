package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	keywordsAccount string
	keywordsDraft   string
	keywordsInput   string
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Run keyword research tasks",
}

var keywordsSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest related keywords for a seed term",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ideas, err := env.Orch.KeywordSuggestions(ctx, keywordsAccount, keywordsDraft, keywordsInput)
		if err != nil {
			return err
		}

		for _, idea := range ideas {
			fmt.Printf("%-40s volume=%d competition=%.2f\n", idea.Keyword, idea.SearchVolume, idea.Competition)
		}
		return nil
	},
}

var keywordsIncludeCmd = &cobra.Command{
	Use:   "include",
	Short: "Find terms to include in the article body",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		terms, err := env.Orch.KeywordsToInclude(ctx, keywordsAccount, keywordsDraft, keywordsInput)
		if err != nil {
			return err
		}

		for _, term := range terms {
			fmt.Printf("%-40s volume=%d repeat=%d\n", term.Text, term.SearchVolume, term.Repeat)
		}
		return nil
	},
}

func init() {
	keywordsCmd.PersistentFlags().StringVar(&keywordsAccount, "account", "", "account ID (required)")
	keywordsCmd.PersistentFlags().StringVar(&keywordsDraft, "draft", "", "draft ID to persist results to (optional)")
	keywordsCmd.PersistentFlags().StringVar(&keywordsInput, "input", "", "seed keyword (required)")
	_ = keywordsCmd.MarkPersistentFlagRequired("account")
	_ = keywordsCmd.MarkPersistentFlagRequired("input")

	keywordsCmd.AddCommand(keywordsSuggestCmd, keywordsIncludeCmd)
	rootCmd.AddCommand(keywordsCmd)
}
