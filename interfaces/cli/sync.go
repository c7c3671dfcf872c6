package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"easymemo/infrastructure/config"
)

func newSyncCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local collection with the server",
		Long: `Sync pulls the latest server state and pushes everything still pending
or failed, oldest first.

With --watch the process stays up: it probes connectivity periodically,
reconciles on a timer while online, and reacts to connectivity being
restored by refreshing and draining the backlog immediately. Edits to
the config file are picked up without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), flagConfig, flagVerbose)
			if err != nil {
				return err
			}
			defer app.Close()

			if watch {
				return runWatch(cmd.Context(), app)
			}
			return runOnce(cmd, app)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and sync continuously")
	return cmd
}

func runOnce(cmd *cobra.Command, app *App) error {
	ctx := cmd.Context()

	if !app.Monitor.Online() {
		fmt.Fprintln(cmd.OutOrStdout(), "Server unreachable; nothing pushed.")
		return nil
	}

	if err := app.Repo.Refresh(ctx); err != nil {
		return err
	}

	res := app.Rec.Reconcile(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "Synced %d of %d, %d failed.\n",
		res.Synced, res.Attempted, res.Failed)
	return nil
}

func runWatch(ctx context.Context, app *App) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connectivity coming back triggers an immediate pull and drain.
	app.Monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		if err := app.Repo.Refresh(ctx); err != nil {
			app.Logger.Warn("Refresh after reconnect failed", zap.Error(err))
		}
		app.Rec.Reconcile(ctx)
	})

	if flagConfig != "" {
		watcher, err := config.NewWatcher(flagConfig, app.Config, app.Logger)
		if err != nil {
			app.Logger.Warn("Config watching disabled", zap.Error(err))
		} else {
			watcher.Subscribe(func(cfg config.Config) {
				if app.ApplyReload(cfg) {
					app.Logger.Warn("Connection settings changed; restart to apply them",
						zap.String("apiBaseUrl", cfg.APIBaseURL))
				}
			})
			go watcher.Run(ctx)
		}
	}

	if app.Monitor.Online() {
		if err := app.Repo.Refresh(ctx); err != nil {
			app.Logger.Warn("Initial refresh failed", zap.Error(err))
		}
		app.Rec.Reconcile(ctx)
	}

	go app.Monitor.Run(ctx)
	go app.Rec.Run(ctx)

	app.Logger.Info("Watching for changes; press Ctrl-C to stop")
	<-ctx.Done()
	return nil
}
