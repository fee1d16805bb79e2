package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phrazzld/tasklist/internal/config"
	"github.com/phrazzld/tasklist/internal/platform/localfs"
	"github.com/phrazzld/tasklist/internal/platform/postgres"
	"github.com/phrazzld/tasklist/internal/platform/s3store"
	"github.com/phrazzld/tasklist/internal/store"
)

// backendHandle is an opened storage backend and the todo path to use
// with it.
type backendHandle struct {
	store store.FileStore
	path  string

	// local is set for the local backend; the watcher needs file paths.
	local *localfs.Store

	// db is set for the postgres backend.
	db *sql.DB
}

func (b *backendHandle) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// openBackend opens the backend named by cfg.Todo.Backend.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backendHandle, error) {
	switch cfg.Todo.Backend {
	case config.BackendS3:
		s, err := s3store.NewFromConfig(ctx, cfg.S3, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 backend: %w", err)
		}
		return &backendHandle{store: s, path: cfg.Todo.Path}, nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", postgres.MaskDatabaseURL(cfg.Database.URL), err)
		}
		s, err := postgres.NewStore(db, logger)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create postgres backend: %w", err)
		}
		return &backendHandle{store: s, path: cfg.Todo.Path, db: db}, nil

	default:
		root, name, err := localLocation(cfg.Todo.Path)
		if err != nil {
			return nil, err
		}
		s, err := localfs.New(root, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create local backend: %w", err)
		}
		return &backendHandle{store: s, path: name, local: s}, nil
	}
}

// localLocation splits the configured todo path into the backend root and
// the file name. Without a configured path, todo.txt in the home directory
// is used.
func localLocation(path string) (string, string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", fmt.Errorf("failed to locate home directory: %w", err)
		}
		return home, localfs.DefaultFileName, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return filepath.Dir(abs), filepath.Base(abs), nil
}
