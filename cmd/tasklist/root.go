package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phrazzld/tasklist/internal/config"
	"github.com/phrazzld/tasklist/internal/platform/logger"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configFile string
	todoFile   string
	backend    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tasklist",
		Short: "Manage a todo.txt task list stored locally, in S3 or in PostgreSQL",
		Long: `tasklist edits a todo.txt file kept on a storage backend.

Local edits are saved after a short debounce window; when the file was
changed elsewhere and nothing is pending locally, it is reloaded. Tasks
are addressed by their line number in the file, starting at 1.

Configuration is read from tasklist.yaml and TASKLIST_* environment
variables, for example TASKLIST_TODO_PATH or TASKLIST_TODO_BACKEND.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: tasklist.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.todoFile, "file", "f", "", "todo file, overrides todo.path")
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "storage backend: local, s3 or postgres")

	cmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Task commands:"},
		&cobra.Group{ID: "sync", Title: "Sync commands:"},
		&cobra.Group{ID: "admin", Title: "Administration:"},
	)

	cmd.AddCommand(
		newListCmd(opts),
		newAddCmd(opts),
		newDoneCmd(opts),
		newUndoCmd(opts),
		newPriCmd(opts),
		newDeferCmd(opts),
		newRmCmd(opts),
		newEditCmd(opts),
		newArchiveCmd(opts),
		newSyncCmd(opts),
		newWatchCmd(opts),
		newServeCmd(opts),
		newMigrateCmd(opts),
		newHistoryCmd(opts),
	)
	return cmd
}

// loadConfig loads the configuration and applies the persistent flags.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.todoFile != "" {
		cfg.Todo.Path = o.todoFile
	}
	if o.backend != "" {
		cfg.Todo.Backend = o.backend
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// setup loads the configuration and initializes logging.
func (o *rootOptions) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.Setup(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Debug("configuration loaded",
		"backend", cfg.Todo.Backend,
		"todo_path", cfg.Todo.Path,
		"backup_enabled", cfg.Backup.Enabled)
	return cfg, log, nil
}

// withSession opens a session, runs fn against the loaded list and shuts
// the session down, saving what fn changed.
func (o *rootOptions) withSession(cmd *cobra.Command, fn func(ctx context.Context, app *application) error) (err error) {
	cfg, log, err := o.setup()
	if err != nil {
		return err
	}

	ctx := logger.WithLogger(cmd.Context(), log)
	app, err := newApplication(ctx, cfg, log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if serr := app.shutdown(); serr != nil && err == nil {
			err = serr
		}
	}()

	if err := app.start(ctx); err != nil {
		return err
	}
	return fn(ctx, app)
}
