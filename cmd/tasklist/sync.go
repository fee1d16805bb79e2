package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/tasklist/internal/platform/localfs"
)

func newSyncCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "sync",
		GroupID: "sync",
		Short:   "Reload the todo file, saving changes left over from an earlier run",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withSession(cmd, func(_ context.Context, app *application) error {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tasks, %s\n",
					app.syncer.Path(), app.list.Size(), app.syncer.State())
				return nil
			})
		},
	}
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "sync",
		Short:   "Keep the session open and reload when the todo file changes",
		Long: `Keep the session open and reload whenever the todo file changes.

The local backend is watched for file system events. Other backends are
polled every --interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withSession(cmd, func(ctx context.Context, app *application) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", app.syncer.Path())
				if app.backend.local != nil {
					return watchLocal(ctx, app)
				}
				return poll(ctx, app, interval)
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "poll interval for remote backends")
	return cmd
}

// watchLocal reloads on file system events until ctx is done.
func watchLocal(ctx context.Context, app *application) error {
	w, err := localfs.NewWatcher(app.syncer.RemoteChanged, localfs.DefaultDebounce, app.logger)
	if err != nil {
		return err
	}
	if err := w.Watch(app.backend.local.Resolve(app.syncer.Path())); err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	app.logger.Info("stopping watcher")
	return w.Stop()
}

// poll reloads every interval until ctx is done.
func poll(ctx context.Context, app *application, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid poll interval %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			app.syncer.RemoteChanged()
		}
	}
}
