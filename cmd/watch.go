package cmd

import (
	watchview "github.com/bnema/gasmorph/internal/adapters/render/watch"
	"github.com/bnema/gasmorph/internal/application"
	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
)

func newWatchCmd(app *app) *cobra.Command {
	var accountFlag string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show a live status view that refreshes on an interval",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := app.account(cmd.Context(), accountFlag)
			if err != nil {
				return err
			}
			svc, err := app.statusService(cmd.Context())
			if err != nil {
				return err
			}

			watcher := application.NewWatcher(svc, app.cfg.RefreshInterval, log.Root())
			return watchview.Run(cmd.Context(), watcher, account, watchview.Options{
				View:            statusRenderOptions(app),
				RefreshInterval: app.cfg.RefreshInterval,
				Now:             app.now,
			}, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "Account address (defaults to the imported wallet)")

	return cmd
}
