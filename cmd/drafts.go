package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/draftzen/internal/model"
	"github.com/sells-group/draftzen/internal/store"
)

var (
	draftsAccount string
	draftsTopic   string
	draftsURLs    []string
	draftsLimit   int
)

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Manage blog drafts",
}

var draftsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a draft for a topic keyword",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if _, err := env.Ledger.EnsureAccount(ctx, draftsAccount); err != nil {
			return err
		}

		var candidates []model.CandidateDocument
		for i, u := range draftsURLs {
			candidates = append(candidates, model.CandidateDocument{Reference: u, PriorityRank: i + 1})
		}

		draft, err := env.Store.CreateDraft(ctx, &model.Draft{
			AccountID:    draftsAccount,
			TopicKeyword: draftsTopic,
			Candidates:   candidates,
		})
		if err != nil {
			return err
		}

		return printJSON(draft)
	},
}

var draftsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List drafts for an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		drafts, err := env.Store.ListDrafts(ctx, draftsAccount, store.DraftFilter{Limit: draftsLimit})
		if err != nil {
			return err
		}

		for _, d := range drafts {
			fmt.Printf("%s  %s\n", d.ID, d.TopicKeyword)
		}
		return nil
	},
}

var draftsDeleteCmd = &cobra.Command{
	Use:   "delete <draft-id>",
	Short: "Delete a draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		return env.Store.DeleteDraft(ctx, draftsAccount, args[0])
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	draftsCmd.PersistentFlags().StringVar(&draftsAccount, "account", "", "account ID (required)")
	_ = draftsCmd.MarkPersistentFlagRequired("account")

	draftsCreateCmd.Flags().StringVar(&draftsTopic, "topic", "", "topic keyword (required)")
	draftsCreateCmd.Flags().StringSliceVar(&draftsURLs, "url", nil, "candidate article URL, in priority order (repeatable)")
	_ = draftsCreateCmd.MarkFlagRequired("topic")

	draftsListCmd.Flags().IntVar(&draftsLimit, "limit", 50, "max drafts to list")

	draftsCmd.AddCommand(draftsCreateCmd, draftsListCmd, draftsDeleteCmd)
	rootCmd.AddCommand(draftsCmd)
}
