package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEligibilityCmd(app *app) *cobra.Command {
	var accountFlag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "eligibility",
		Short: "Resolve whether an account's fees can be sponsored and why",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := app.account(cmd.Context(), accountFlag)
			if err != nil {
				return err
			}
			resolver, err := app.eligibilityResolver(cmd.Context())
			if err != nil {
				return err
			}

			verdict, err := resolver.Resolve(cmd.Context(), account)
			if err != nil {
				return err
			}

			balance := "unknown"
			if verdict.BalanceKnown && verdict.TokenBalance != nil {
				balance = verdict.TokenBalance.Dec()
			}

			if asJSON {
				return writeJSON(cmd, map[string]any{
					"account":       account.Hex(),
					"eligible":      verdict.Eligible,
					"basis":         string(verdict.Basis),
					"token_balance": balance,
				})
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "account: %s\n", account.Hex())
			_, _ = fmt.Fprintf(out, "eligible: %t\n", verdict.Eligible)
			_, _ = fmt.Fprintf(out, "basis: %s\n", verdict.Basis.Label())
			_, _ = fmt.Fprintf(out, "token balance: %s\n", balance)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "Account address (defaults to the imported wallet)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}
