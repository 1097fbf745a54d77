package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/bnema/gasmorph/internal/adapters/bundler"
	"github.com/bnema/gasmorph/internal/adapters/chain"
	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

func newOpCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "op",
		Short: "Build, submit and inspect user operations through the bundler",
	}

	cmd.AddCommand(
		newOpBuildCmd(app),
		newOpSendCmd(app),
		newOpStatusCmd(app),
		newOpEstimateCmd(app),
	)

	return cmd
}

func newOpBuildCmd(app *app) *cobra.Command {
	var accountFlag string
	var modeFlag string
	var dataFlag string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Assemble an unsigned user operation envelope as JSON",
		Long:  "Assembles an envelope with current fee data, the account's sequence number and encoded paymaster data. The call data is executed by the sender account. Without --data it mints the demo asset to the account. The account must be eligible for the chosen mode.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := app.account(cmd.Context(), accountFlag)
			if err != nil {
				return err
			}
			mode, err := domain.ParsePaymasterMode(modeFlag)
			if err != nil {
				return err
			}

			var call domain.Call
			if dataFlag != "" {
				if call.Data, err = hexutil.Decode(dataFlag); err != nil {
					return fmt.Errorf("decode call data: %w", err)
				}
			} else {
				if call.Data, err = chain.DemoNFTABI.Pack("mint", account); err != nil {
					return fmt.Errorf("pack mint call: %w", err)
				}
			}

			svc, err := app.operationService(cmd.Context())
			if err != nil {
				return err
			}
			envelope, err := svc.Build(cmd.Context(), call, account, mode)
			if err != nil {
				return err
			}

			return writeJSON(cmd, bundler.FromEnvelope(envelope))
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "Sender address (defaults to the imported wallet)")
	cmd.Flags().StringVar(&modeFlag, "mode", "session", "Paymaster mode: session or token")
	cmd.Flags().StringVar(&dataFlag, "data", "", "Hex call data")

	return cmd
}

func newOpSendCmd(app *app) *cobra.Command {
	var fileFlag string
	var signatureFlag string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Submit a signed envelope to the bundler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			envelope, err := readEnvelope(cmd, fileFlag)
			if err != nil {
				return err
			}
			if signatureFlag != "" {
				sig, err := hexutil.Decode(signatureFlag)
				if err != nil {
					return fmt.Errorf("decode signature: %w", err)
				}
				envelope = envelope.WithSignature(sig)
			}

			svc, err := app.operationService(cmd.Context())
			if err != nil {
				return err
			}
			hash, err := svc.Send(cmd.Context(), envelope)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "User operation %s submitted to entry point %s\n", hash.Hex(), svc.EntryPoint().Hex())
			return nil
		},
	}

	cmd.Flags().StringVarP(&fileFlag, "file", "f", "-", "Envelope JSON file, - for stdin")
	cmd.Flags().StringVar(&signatureFlag, "signature", "", "Hex signature to attach before sending")

	return cmd
}

func newOpStatusCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <hash>",
		Short: "Look up a user operation by hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hexutil.Decode(args[0])
			if err != nil || len(raw) != common.HashLength {
				return fmt.Errorf("invalid user operation hash %q", args[0])
			}

			svc, err := app.operationService(cmd.Context())
			if err != nil {
				return err
			}
			receipt, err := svc.Lookup(cmd.Context(), common.BytesToHash(raw))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "hash: %s\n", receipt.Hash.Hex())
			_, _ = fmt.Fprintf(out, "sender: %s\n", receipt.Sender.Hex())
			_, _ = fmt.Fprintf(out, "entry point: %s\n", receipt.EntryPoint.Hex())
			if receipt.BlockNumber != nil {
				_, _ = fmt.Fprintf(out, "block: %s\n", receipt.BlockNumber)
				_, _ = fmt.Fprintf(out, "transaction: %s\n", receipt.Transaction.Hex())
			} else {
				_, _ = fmt.Fprintln(out, "block: pending")
			}
			return nil
		},
	}
}

func newOpEstimateCmd(app *app) *cobra.Command {
	var fileFlag string

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Ask the bundler to estimate gas for an envelope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			envelope, err := readEnvelope(cmd, fileFlag)
			if err != nil {
				return err
			}

			svc, err := app.operationService(cmd.Context())
			if err != nil {
				return err
			}
			estimate, err := svc.Estimate(cmd.Context(), envelope)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "callGasLimit: %d\n", estimate.CallGasLimit)
			_, _ = fmt.Fprintf(out, "verificationGasLimit: %d\n", estimate.VerificationGasLimit)
			_, _ = fmt.Fprintf(out, "preVerificationGas: %d\n", estimate.PreVerificationGas)
			return nil
		},
	}

	cmd.Flags().StringVarP(&fileFlag, "file", "f", "-", "Envelope JSON file, - for stdin")

	return cmd
}

func readEnvelope(cmd *cobra.Command, path string) (domain.OperationEnvelope, error) {
	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return domain.OperationEnvelope{}, fmt.Errorf("open envelope: %w", err)
		}
		defer f.Close()
		in = f
	}

	var op bundler.UserOperation
	if err := json.NewDecoder(in).Decode(&op); err != nil {
		return domain.OperationEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return op.Envelope(), nil
}
