package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"easymemo/domain/memo"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>",
		Short: "Create a memo",
		Long: `Add creates a memo. The memo is stored locally right away; when the
server is reachable it is synced in the same call, otherwise it stays
pending and syncs on the next reconciliation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), flagConfig, flagVerbose)
			if err != nil {
				return err
			}
			defer app.Close()

			m, err := app.Repo.Create(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			switch m.Status() {
			case memo.StatusSynced:
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (synced)\n", shortID(m.ID().String()))
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (will sync when the server is reachable)\n",
					shortID(m.ID().String()))
			}
			return nil
		},
	}
}
