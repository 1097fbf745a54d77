package cmd

import (
	"fmt"
	"time"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/spf13/cobra"
)

func newSessionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Issue and inspect gas sessions",
	}

	cmd.AddCommand(
		newSessionIssueCmd(app),
		newSessionStatusCmd(app),
	)

	return cmd
}

func newSessionIssueCmd(app *app) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "issue <account>",
		Short: "Start or replace a gas session for an account (owner only)",
		Long:  "Issues through the signer service. Its key is the issuer and must be contracts.owner; the paymaster contract enforces the same rule on chain.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("duration") {
				duration = app.cfg.Sponsorship.SessionDuration
			}

			issuer, err := app.remoteSig.Address(cmd.Context())
			if err != nil {
				return fmt.Errorf("resolve issuer: %w", err)
			}

			sessions, err := app.sessionManager(cmd.Context())
			if err != nil {
				return err
			}

			session, err := sessions.Issue(cmd.Context(), account, int64(duration/time.Second), issuer)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Session issued for %s until %s\n", session.Account.Hex(), session.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 0, "Session length (defaults to sponsorship.session_duration)")

	return cmd
}

func newSessionStatusCmd(app *app) *cobra.Command {
	var accountFlag string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the gas session of an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := app.account(cmd.Context(), accountFlag)
			if err != nil {
				return err
			}
			sessions, err := app.sessionManager(cmd.Context())
			if err != nil {
				return err
			}

			status, err := sessions.Status(cmd.Context(), account)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "account: %s\n", account.Hex())
			_, _ = fmt.Fprintf(out, "session: %s\n", status.State)
			switch status.State {
			case domain.SessionStateActive:
				_, _ = fmt.Fprintf(out, "remaining: %s\n", status.Countdown(app.now()))
			case domain.SessionStateExpired:
				_, _ = fmt.Fprintf(out, "expired at: %s\n", status.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "Account address (defaults to the imported wallet)")

	return cmd
}
