package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"easymemo/domain/memo"
)

func newListCmd() *cobra.Command {
	var (
		page int
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memos, newest first",
		Long: `List shows the memo collection, newest first. Memos not yet confirmed by
the server are shown on every page, marked with their sync state.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), flagConfig, flagVerbose)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if err := app.Repo.Refresh(ctx); err != nil {
				return err
			}

			if all {
				for {
					more, err := app.Pager.LoadMore(ctx)
					if err != nil {
						app.Logger.Warn("Stopping page walk early")
						break
					}
					if !more {
						break
					}
				}
			}

			pageSize := app.Config.PageSize
			if all {
				pageSize = app.Repo.Len()
			}

			memos, err := app.Repo.List(page, pageSize)
			if err != nil {
				return err
			}
			if len(memos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No memos.")
				return nil
			}

			printMemos(cmd, memos)
			if !all && app.Pager.HasMore() {
				fmt.Fprintln(cmd.OutOrStdout(), "\n(more on the server; use --page or --all)")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "page to show")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "fetch and show every page")
	return cmd
}

func printMemos(cmd *cobra.Command, memos []*memo.Memo) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tCONTENT")
	for _, m := range memos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			shortID(m.ID().String()),
			statusMarker(m.Status()),
			m.CreatedAt().Local().Format("2006-01-02 15:04"),
			m.Content().Summary(60),
		)
	}
}

func statusMarker(s memo.SyncStatus) string {
	switch s {
	case memo.StatusSynced:
		return "synced"
	case memo.StatusFailed:
		return "failed!"
	default:
		return "pending"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
