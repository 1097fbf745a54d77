package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newWalletCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the local wallet key",
	}

	cmd.AddCommand(
		newWalletImportCmd(app),
		newWalletAddressCmd(app),
	)

	return cmd
}

func newWalletImportCmd(app *app) *cobra.Command {
	var refFlag string
	var keyFlag string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Store a hex private key in the secret store",
		Long:  "Validates a hex private key and stores it under a secret reference. Without --key the key is read from the first line of stdin.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref := refFlag
			if ref == "" {
				ref = app.cfg.WalletKeyRef
			}

			key := keyFlag
			if key == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && strings.TrimSpace(line) == "" {
					return fmt.Errorf("read private key from stdin: %w", err)
				}
				key = line
			}

			address, err := app.wallet.Import(cmd.Context(), ref, key)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %s\n", address.Hex(), ref)
			return nil
		},
	}

	cmd.Flags().StringVar(&refFlag, "ref", "", "Secret reference (defaults to wallet.key_ref)")
	cmd.Flags().StringVar(&keyFlag, "key", "", "Hex private key")

	return cmd
}

func newWalletAddressCmd(app *app) *cobra.Command {
	var refFlag string

	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the address of a stored key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref := refFlag
			if ref == "" {
				ref = app.cfg.WalletKeyRef
			}

			address, err := app.wallet.Address(cmd.Context(), ref)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), address.Hex())
			return err
		},
	}

	cmd.Flags().StringVar(&refFlag, "ref", "", "Secret reference (defaults to wallet.key_ref)")

	return cmd
}
