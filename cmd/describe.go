package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	describeAccount string
	describeDraft   string
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Generate a meta description for a draft",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		description, err := env.Orch.GenerateDescription(ctx, describeAccount, describeDraft)
		if err != nil {
			return err
		}

		fmt.Println(description)
		return nil
	},
}

func init() {
	describeCmd.Flags().StringVar(&describeAccount, "account", "", "account ID (required)")
	describeCmd.Flags().StringVar(&describeDraft, "draft", "", "draft ID (required)")
	_ = describeCmd.MarkFlagRequired("account")
	_ = describeCmd.MarkFlagRequired("draft")
	rootCmd.AddCommand(describeCmd)
}
