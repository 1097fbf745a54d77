package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/bnema/gasmorph/internal/platform/otel"
	"github.com/bnema/gasmorph/internal/version"
	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const otelShutdownTimeout = 5 * time.Second

func Execute() error {
	rootCmd, cleanup := newRootCmd()
	defer cleanup()
	return rootCmd.Execute()
}

// newRootCmd returns the command tree and a cleanup that releases every
// connection the command opened. Cleanup must run whether or not the
// command failed.
func newRootCmd() (*cobra.Command, func()) {
	var verbose bool
	var shutdownTracing func(context.Context) error

	rootCmd := &cobra.Command{
		Use:           "gm",
		Short:         "gasmorph (gm): gas sponsorship sessions and sponsored mints",
		Long:          "gm decides whether a transaction's network fee is sponsored, manages time-boxed gas sessions, and mints the demo asset either self-paid or fee-free through the paymaster.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd, func() {}
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		installLogger(cmd, verbose)

		shutdown, err := otel.Setup(cmd.Context(), "gm", version.String())
		if err != nil {
			log.Warn("Tracing disabled", "err", err)
		}
		shutdownTracing = shutdown
		return nil
	}
	cleanup := func() {
		app.close()
		if shutdownTracing == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Warn("Tracing shutdown failed", "err", err)
		}
		shutdownTracing = nil
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newStatusCmd(app),
		newEligibilityCmd(app),
		newSessionCmd(app),
		newTasksCmd(app),
		newConnectCmd(app),
		newDisconnectCmd(app),
		newMintCmd(app),
		newHistoryCmd(app),
		newPaymasterCmd(app),
		newOpCmd(app),
		newWatchCmd(app),
		newWalletCmd(app),
		newSignerCmd(app),
	)

	return rootCmd, cleanup
}

func installLogger(cmd *cobra.Command, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = log.LevelDebug
	}

	out := cmd.ErrOrStderr()
	useColor := false
	if f, ok := out.(interface{ Fd() uintptr }); ok {
		useColor = isatty.IsTerminal(f.Fd())
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(out, level, useColor)))
}
