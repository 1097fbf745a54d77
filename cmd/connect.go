package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConnectCmd(app *app) *cobra.Command {
	var accountFlag string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open a connection so task progress can be recorded",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := app.account(cmd.Context(), accountFlag)
			if err != nil {
				return err
			}
			if err := app.tasks.Connect(cmd.Context(), account); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Connected %s\n", account.Hex())
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "Account address (defaults to the imported wallet)")

	return cmd
}

func newDisconnectCmd(app *app) *cobra.Command {
	var accountFlag string

	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Close the connection and reset task progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := app.account(cmd.Context(), accountFlag)
			if err != nil {
				return err
			}
			if err := app.tasks.Disconnect(cmd.Context(), account); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Disconnected %s\n", account.Hex())
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "Account address (defaults to the imported wallet)")

	return cmd
}
