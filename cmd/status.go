package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	statusadapter "github.com/bnema/gasmorph/internal/adapters/render/status"
	"github.com/bnema/gasmorph/internal/application"
	"github.com/bnema/gasmorph/internal/domain"
	"github.com/spf13/cobra"
)

const tokenSymbol = "DEMO"

type statusJSON struct {
	Account      string           `json:"account"`
	Eligible     bool             `json:"eligible"`
	Basis        string           `json:"basis"`
	TokenBalance string           `json:"token_balance,omitempty"`
	BalanceKnown bool             `json:"balance_known"`
	Session      sessionJSON      `json:"session"`
	Completed    []domain.TaskID  `json:"completed_tasks"`
	TaskTotal    int              `json:"task_total"`
	CanSponsor   bool             `json:"can_sponsor"`
	MintCount    int              `json:"mint_count"`
	RecentMints  []mintRecordJSON `json:"recent_mints"`
	CapturedAt   time.Time        `json:"captured_at"`
}

type sessionJSON struct {
	State     domain.SessionState `json:"state"`
	Active    bool                `json:"active"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
	Remaining string              `json:"remaining,omitempty"`
}

type mintRecordJSON struct {
	Timestamp       time.Time `json:"timestamp"`
	TransactionHash string    `json:"transaction_hash"`
	WasSponsored    bool      `json:"was_sponsored"`
}

func newStatusCmd(app *app) *cobra.Command {
	var accountFlag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show eligibility, session, task progress and mints for an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := app.account(cmd.Context(), accountFlag)
			if err != nil {
				return err
			}
			svc, err := app.statusService(cmd.Context())
			if err != nil {
				return err
			}

			status, err := svc.Get(cmd.Context(), account)
			if err != nil {
				return err
			}

			return writeStatusOutput(cmd, app, status, asJSON)
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "Account address (defaults to the imported wallet)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}

func writeStatusOutput(cmd *cobra.Command, app *app, status application.AccountStatus, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, toStatusJSON(status))
	}

	rendered, err := statusadapter.Render(status, statusRenderOptions(app))
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func statusRenderOptions(app *app) statusadapter.RenderOptions {
	return statusadapter.RenderOptions{
		Now:             app.now(),
		SessionDuration: app.cfg.Sponsorship.SessionDuration,
		TokenSymbol:     tokenSymbol,
	}
}

func toStatusJSON(status application.AccountStatus) statusJSON {
	out := statusJSON{
		Account:      status.Account.Hex(),
		Eligible:     status.Verdict.Eligible,
		Basis:        string(status.Verdict.Basis),
		BalanceKnown: status.Verdict.BalanceKnown,
		Session:      toSessionJSON(status.Session, status.CapturedAt),
		Completed:    status.Completed.IDs(),
		TaskTotal:    status.TaskTotal,
		CanSponsor:   status.CanSponsor(),
		MintCount:    status.MintCount,
		RecentMints:  toMintRecordsJSON(status.RecentMints),
		CapturedAt:   status.CapturedAt,
	}
	if status.Verdict.BalanceKnown && status.Verdict.TokenBalance != nil {
		out.TokenBalance = status.Verdict.TokenBalance.Dec()
	}
	return out
}

func toSessionJSON(session domain.SessionStatus, now time.Time) sessionJSON {
	out := sessionJSON{State: session.State, Active: session.Active}
	if !session.ExpiresAt.IsZero() {
		expiresAt := session.ExpiresAt.UTC()
		out.ExpiresAt = &expiresAt
	}
	if session.Active {
		out.Remaining = session.Countdown(now)
	}
	return out
}

func toMintRecordsJSON(records []domain.MintRecord) []mintRecordJSON {
	out := make([]mintRecordJSON, 0, len(records))
	for _, record := range records {
		out = append(out, mintRecordJSON{
			Timestamp:       record.Timestamp.UTC(),
			TransactionHash: record.TransactionHash.Hex(),
			WasSponsored:    record.WasSponsored,
		})
	}
	return out
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
