package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(app *app) *cobra.Command {
	var accountFlag string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded mints, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := app.account(cmd.Context(), accountFlag)
			if err != nil {
				return err
			}
			history, err := app.mintHistory()
			if err != nil {
				return err
			}

			count, err := history.Count(cmd.Context(), account)
			if err != nil {
				return err
			}
			records, err := history.List(cmd.Context(), account, limit)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, map[string]any{
					"account": account.Hex(),
					"count":   count,
					"mints":   toMintRecordsJSON(records),
				})
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "account: %s\n", account.Hex())
			_, _ = fmt.Fprintf(out, "mints: %d\n", count)
			if len(records) == 0 {
				_, _ = fmt.Fprintln(out, "no mints recorded")
				return nil
			}
			for _, record := range records {
				path := "self-paid"
				if record.WasSponsored {
					path = "sponsored"
				}
				_, _ = fmt.Fprintf(out, "%s  %s  %s\n", record.Timestamp.Local().Format("2006-01-02 15:04:05"), record.TransactionHash.Hex(), path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "Account address (defaults to the imported wallet)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}
