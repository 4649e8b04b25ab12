package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/draftzen/internal/model"
)

var (
	creditsAccount string
	creditsAmount  int64
	creditsNote    string
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and adjust credit accounts",
}

var creditsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show an account's balance and recent transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		acct, err := env.Ledger.Account(ctx, creditsAccount)
		if err != nil {
			return err
		}

		txns, err := env.Ledger.Transactions(ctx, creditsAccount, 20)
		if err != nil {
			return err
		}

		fmt.Printf("account: %s\nbalance: %d\ndebited: %d\n\n", acct.AccountID, acct.Balance, acct.TotalDebited)
		for _, txn := range txns {
			fmt.Printf("%s  %-24s %+d  %s\n", txn.CreatedAt.Format("2006-01-02 15:04:05"), txn.Operation, -txn.Amount, txn.Status)
		}
		return nil
	},
}

var creditsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set an account's balance to an exact value",
	RunE: func(cmd *cobra.Command, args []string) error {
		return adjustCredits(cmd, func(env *appEnv) (int64, error) {
			return env.Ledger.SetBalance(cmd.Context(), creditsAccount, creditsAmount)
		})
	},
}

var creditsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add credits to an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return adjustCredits(cmd, func(env *appEnv) (int64, error) {
			return env.Ledger.Credit(cmd.Context(), creditsAccount, model.OpAdminCreditAddition, creditsAmount, creditsNote)
		})
	},
}

var creditsDeductCmd = &cobra.Command{
	Use:   "deduct",
	Short: "Deduct credits from an account, clamping at zero",
	RunE: func(cmd *cobra.Command, args []string) error {
		return adjustCredits(cmd, func(env *appEnv) (int64, error) {
			return env.Ledger.Correct(cmd.Context(), creditsAccount, creditsAmount, creditsNote)
		})
	},
}

func adjustCredits(cmd *cobra.Command, apply func(*appEnv) (int64, error)) error {
	env, err := initEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer env.Close()

	balance, err := apply(env)
	if err != nil {
		return err
	}

	fmt.Printf("balance: %d\n", balance)
	return nil
}

func init() {
	creditsCmd.PersistentFlags().StringVar(&creditsAccount, "account", "", "account ID (required)")
	_ = creditsCmd.MarkPersistentFlagRequired("account")

	for _, c := range []*cobra.Command{creditsSetCmd, creditsAddCmd, creditsDeductCmd} {
		c.Flags().Int64Var(&creditsAmount, "amount", 0, "credit amount (required)")
		c.Flags().StringVar(&creditsNote, "note", "", "reason recorded on the transaction")
		_ = c.MarkFlagRequired("amount")
	}

	creditsCmd.AddCommand(creditsShowCmd, creditsSetCmd, creditsAddCmd, creditsDeductCmd)
	rootCmd.AddCommand(creditsCmd)
}
