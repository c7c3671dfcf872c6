package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"easymemo/domain/memo"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), flagConfig, flagVerbose)
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()

			if app.Monitor.Online() {
				fmt.Fprintln(out, "Server:   reachable")
			} else {
				fmt.Fprintln(out, "Server:   unreachable")
			}

			if app.Identity.Guest {
				fmt.Fprintf(out, "Identity: guest (%s)\n", shortID(app.Identity.UserID))
			} else if app.Identity.Email != "" {
				fmt.Fprintf(out, "Identity: %s\n", app.Identity.Email)
			} else {
				fmt.Fprintf(out, "Identity: %s\n", app.Identity.UserID)
			}

			counts := app.Repo.Counts()
			fmt.Fprintf(out, "Memos:    %d total, %d synced, %d pending, %d failed\n",
				app.Repo.Len(),
				counts[memo.StatusSynced],
				counts[memo.StatusPending],
				counts[memo.StatusFailed],
			)

			if backlog := len(app.Repo.PendingCreates()) + len(app.Repo.PendingEdits()); backlog > 0 {
				fmt.Fprintf(out, "Backlog:  %d memo(s) waiting to sync; run 'easymemo sync'\n", backlog)
			}
			return nil
		},
	}
}
