package cmd

import (
	"fmt"
	"strconv"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/spf13/cobra"
)

func newTasksCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and complete sponsorship tasks",
	}

	cmd.AddCommand(
		newTasksListCmd(app),
		newTasksCompleteCmd(app),
	)

	return cmd
}

func newTasksListCmd(app *app) *cobra.Command {
	var accountFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the task catalog and the account's progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			completed := domain.NewTaskCompletionSet()
			account, err := app.account(cmd.Context(), accountFlag)
			switch {
			case err == nil:
				completed, err = app.tasks.Progress(cmd.Context(), account)
				if err != nil {
					return err
				}
			case accountFlag != "":
				return err
			}

			out := cmd.OutOrStdout()
			catalog := app.tasks.Catalog()
			for _, task := range catalog {
				mark := " "
				if completed.Has(task.ID) {
					mark = "x"
				}
				_, _ = fmt.Fprintf(out, "[%s] %d. %s\n", mark, task.ID, task.Title)
			}
			_, _ = fmt.Fprintf(out, "completed: %d/%d (sponsorship needs %d)\n", completed.Size(), len(catalog), domain.MinTasksForSponsorship)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "Account address (defaults to the imported wallet)")

	return cmd
}

func newTasksCompleteCmd(app *app) *cobra.Command {
	var accountFlag string

	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Mark a catalog task as completed for a connected account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("parse task id %q: %w", args[0], err)
			}
			account, err := app.account(cmd.Context(), accountFlag)
			if err != nil {
				return err
			}

			added, set, err := app.tasks.Complete(cmd.Context(), account, domain.TaskID(id))
			if err != nil {
				return err
			}

			if added {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task %d completed (%d/%d)\n", id, set.Size(), len(app.tasks.Catalog()))
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task %d already completed (%d/%d)\n", id, set.Size(), len(app.tasks.Catalog()))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "Account address (defaults to the imported wallet)")

	return cmd
}
