package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phrazzld/tasklist/internal/config"
	"github.com/phrazzld/tasklist/internal/platform/backup"
	"github.com/phrazzld/tasklist/internal/platform/postgres"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	commands := []string{
		postgres.MigrateUp,
		postgres.MigrateDown,
		postgres.MigrateStatus,
		postgres.MigrateVersion,
		postgres.MigrateReset,
	}

	return &cobra.Command{
		Use:       "migrate [" + strings.Join(commands, "|") + "]",
		GroupID:   "admin",
		Short:     "Run database migrations for the postgres backend",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: commands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := postgres.MigrateUp
			if len(args) == 1 {
				command = args[0]
			}

			cfg, log, err := root.setup()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("database.url is required for migrations")
			}

			ctx := cmd.Context()
			db, err := postgres.Open(ctx, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", postgres.MaskDatabaseURL(cfg.Database.URL), err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Warn("failed to close database", "error", err)
				}
			}()

			log.Info("running migrations",
				"command", command,
				"database_url", postgres.MaskDatabaseURL(cfg.Database.URL))
			return postgres.Migrate(ctx, db, command, log)
		},
	}
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "history [id]",
		GroupID: "admin",
		Short:   "List saved snapshots of the todo file, or print one",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if len(args) == 1 {
				var err error
				if id, err = strconv.ParseInt(args[0], 10, 64); err != nil {
					return fmt.Errorf("invalid snapshot id %q", args[0])
				}
			}

			cfg, log, err := root.setup()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			path := cfg.Backup.Path
			if path == "" {
				if path, err = backup.DefaultPath(); err != nil {
					return err
				}
			}
			history, err := backup.Open(ctx, path, cfg.Backup.Retention, log)
			if err != nil {
				return fmt.Errorf("failed to open backup history: %w", err)
			}
			defer func() { _ = history.Close() }()

			out := cmd.OutOrStdout()
			if id != 0 {
				entry, err := history.Get(ctx, id)
				if err != nil {
					return err
				}
				for _, line := range entry.Lines {
					fmt.Fprintln(out, line)
				}
				return nil
			}

			name, err := todoName(ctx, cfg, log)
			if err != nil {
				return err
			}
			entries, err := history.List(ctx, name, limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%d\t%s\t%d tasks\n", e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04:05"), len(e.Lines))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of snapshots to list, 0 for all")
	return cmd
}

// todoName returns the name snapshots of the configured todo file are
// recorded under.
func todoName(ctx context.Context, cfg *config.Config, log *slog.Logger) (string, error) {
	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return "", err
	}
	defer func() { _ = backend.Close() }()

	if backend.path == "" {
		return backend.store.DefaultPath(), nil
	}
	return backend.path, nil
}
