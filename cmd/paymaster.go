package cmd

import (
	"fmt"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/paymaster"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

func newPaymasterCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paymaster",
		Short: "Encode and decode paymaster data",
	}

	cmd.AddCommand(
		newPaymasterEncodeCmd(app),
		newPaymasterDecodeCmd(),
	)

	return cmd
}

func newPaymasterEncodeCmd(app *app) *cobra.Command {
	var payerFlag string
	var modeFlag string
	var paymasterFlag string

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode the paymaster data field for a payer and mode",
		RunE: func(cmd *cobra.Command, _ []string) error {
			payer, err := app.account(cmd.Context(), payerFlag)
			if err != nil {
				return err
			}
			mode, err := domain.ParsePaymasterMode(modeFlag)
			if err != nil {
				return err
			}
			address := app.cfg.Contracts.Paymaster
			if paymasterFlag != "" {
				if address, err = domain.ParseAddress(paymasterFlag); err != nil {
					return err
				}
			}

			data, err := paymaster.Encode(payer, mode, address)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(data))
			return err
		},
	}

	cmd.Flags().StringVar(&payerFlag, "payer", "", "Payer address (defaults to the imported wallet)")
	cmd.Flags().StringVar(&modeFlag, "mode", "session", "Paymaster mode: session or token")
	cmd.Flags().StringVar(&paymasterFlag, "paymaster", "", "Paymaster address (defaults to contracts.paymaster)")

	return cmd
}

func newPaymasterDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode a paymaster data field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hexutil.Decode(args[0])
			if err != nil {
				return fmt.Errorf("decode hex: %w", err)
			}

			data, err := paymaster.Decode(raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "paymaster: %s\n", data.Paymaster.Hex())
			_, _ = fmt.Fprintf(out, "payer: %s\n", data.Payer.Hex())
			_, _ = fmt.Fprintf(out, "mode: %s\n", data.Mode)
			return nil
		},
	}
}
