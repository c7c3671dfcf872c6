package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a memo",
		Long: `Rm deletes a memo locally no matter what. When the memo exists on the
server and the server is reachable, the remote copy is deleted too; a
failed remote delete is not retried.`,
		Args: cobra.ExactArgs(1),
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

			if err := app.Repo.Delete(cmd.Context(), id); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", shortID(id.String()))
			return nil
		},
	}
}
