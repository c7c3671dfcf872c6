// Package cli implements the easymemo command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagVerbose bool
)

// NewRootCmd builds the easymemo command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "easymemo",
		Short: "Offline-first memo client",
		Long: `easymemo keeps a local memo collection in sync with a remote memo service.

Mutations apply locally first and propagate to the server when it is
reachable; anything written while offline is retried automatically.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to config file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newListCmd(),
		newAddCmd(),
		newEditCmd(),
		newRemoveCmd(),
		newSyncCmd(),
		newStatusCmd(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
