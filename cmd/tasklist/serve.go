package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/tasklist/internal/api"
)

// serverShutdownTimeout bounds the wait for in-flight requests.
const serverShutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		port  int
		watch bool
	)

	cmd := &cobra.Command{
		Use:     "serve",
		GroupID: "sync",
		Short:   "Serve the task list over HTTP",
		Long: `Serve the task list as a JSON API under /api.

When server.token is set, requests must carry it as a bearer token.
GET /health is always open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withSession(cmd, func(ctx context.Context, app *application) error {
				if cmd.Flags().Changed("port") {
					app.config.Server.Port = port
				}

				handler := api.NewTaskHandler(app.list, app.syncer, api.TaskHandlerConfig{
					Sorts:         app.config.Todo.Sorts,
					CaseSensitive: app.config.Todo.CaseSensitive,
					KeepPriority:  app.config.Todo.KeepPriority,
					AppendAtEnd:   app.config.Todo.AppendAtEnd,
				}, app.logger)
				router := api.NewRouter(handler, app.config.Server.Token, app.logger)

				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				if watch && app.backend.local != nil {
					go func() {
						if err := watchLocal(ctx, app); err != nil {
							app.logger.Error("watcher failed", "error", err)
						}
					}()
				}
				return startHTTPServer(ctx, app, router)
			})
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default: server.port)")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload on file changes (local backend)")
	return cmd
}

// startHTTPServer serves router until ctx is done or the listener fails,
// then shuts the server down gracefully.
func startHTTPServer(ctx context.Context, app *application, router http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			app.logger.Error("server failed", "error", err)
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("server shutdown completed")
	return nil
}
