package cmd

import (
	"context"
	"fmt"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func newMintCmd(app *app) *cobra.Command {
	var modeFlag string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint the demo asset to the imported wallet, sponsored when allowed",
		Long: "Mints one demo asset. With --mode session the mint is fee-free when the wallet has an active " +
			"gas session and enough completed tasks; otherwise the wallet pays the mint price.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := domain.ParsePaymasterMode(modeFlag)
			if err != nil {
				return err
			}

			coordinator, account, err := app.coordinator(cmd.Context())
			if err != nil {
				return err
			}

			var result domain.MintResult
			execute := func(ctx context.Context) error {
				var execErr error
				result, execErr = coordinator.Execute(ctx, account, mode)
				return execErr
			}

			if quiet {
				err = execute(cmd.Context())
			} else {
				err = runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Minting...", execute)
			}
			if err != nil && result.TransactionHash == (common.Hash{}) {
				return err
			}

			path := "self-paid"
			if result.WasSponsored {
				path = "sponsored"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Minted to %s (%s, %d attempt(s))\n", account.Hex(), path, result.Attempts)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tx: %s\n", result.TransactionHash.Hex())

			// The mint went through but could not be recorded.
			return err
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "session", "Intended paymaster mode: session or token")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not show a progress spinner")

	return cmd
}
