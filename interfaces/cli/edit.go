package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"easymemo/domain/memo"
)

func newEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <text>",
		Short: "Replace a memo's content",
		Long: `Edit replaces a memo's content. The ID may be abbreviated to any unique
prefix, as printed by list. Edits apply locally first and propagate like
creates.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), flagConfig, flagVerbose)
			if err != nil {
				return err
			}
			defer app.Close()

			id, err := app.Repo.Resolve(args[0])
			if err != nil {
				return err
			}

			m, err := app.Repo.Update(cmd.Context(), id, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}

			switch m.Status() {
			case memo.StatusSynced:
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (synced)\n", shortID(m.ID().String()))
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (will sync when the server is reachable)\n",
					shortID(m.ID().String()))
			}
			return nil
		},
	}
}
