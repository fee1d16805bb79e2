package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver" // registers the "sqlite3" driver
	_ "github.com/ncruces/go-sqlite3/embed"  // bundles the SQLite build

	"github.com/phrazzld/tasklist/internal/platform/logger"
	"github.com/phrazzld/tasklist/internal/store"
)

// FileName is the history database created inside the user data directory.
const FileName = "history.db"

const schema = `
CREATE TABLE IF NOT EXISTS backups (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT    NOT NULL,
	contents   TEXT    NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_backups_name_created ON backups(name, created_at);
`

// History is a store.Backupper backed by a SQLite database.
type History struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

var _ store.Backupper = (*History)(nil)

// Option configures a History.
type Option func(*History)

// WithClock overrides the time source used for timestamps and pruning.
func WithClock(now func() time.Time) Option {
	return func(h *History) { h.now = now }
}

// Open opens or creates the history database at path. A retention of
// zero keeps every snapshot.
func Open(ctx context.Context, path string, retention time.Duration, logger *slog.Logger, opts ...Option) (*History, error) {
	if path == "" {
		return nil, errors.New("history path cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	h := &History{
		db:        db,
		retention: retention,
		now:       time.Now,
		logger:    logger.With("component", "backup_history"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// DefaultPath returns the history location under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, "tasklist", FileName), nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Backup implements store.Backupper.
func (h *History) Backup(ctx context.Context, name string, lines []string) error {
	contents := strings.Join(lines, "\n")
	now := h.now()
	ctx = logger.WithLogger(ctx, h.logger)

	return store.RunInTransaction(ctx, h.db, func(ctx context.Context, tx *sql.Tx) error {
		var latest string
		err := tx.QueryRowContext(ctx,
			`SELECT contents FROM backups WHERE name = ? ORDER BY id DESC LIMIT 1`,
			name).Scan(&latest)
		switch {
		case err == nil && latest == contents:
			return nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to read latest backup: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO backups (name, contents, created_at) VALUES (?, ?, ?)`,
			name, contents, now.UnixNano()); err != nil {
			return fmt.Errorf("failed to insert backup: %w", err)
		}

		if h.retention > 0 {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM backups WHERE created_at < ?`,
				now.Add(-h.retention).UnixNano())
			if err != nil {
				return fmt.Errorf("failed to prune backups: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				h.logger.Debug("pruned old backups", "count", n)
			}
		}
		return nil
	})
}

// List returns the snapshots of name, newest first. A limit of zero or
// less returns all of them.
func (h *History) List(ctx context.Context, name string, limit int) ([]store.BackupEntry, error) {
	query := `SELECT id, name, contents, created_at FROM backups WHERE name = ? ORDER BY id DESC`
	args := []any{name}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.BackupEntry
	for rows.Next() {
		var (
			entry    store.BackupEntry
			contents string
			created  int64
		)
		if err := rows.Scan(&entry.ID, &entry.Name, &contents, &created); err != nil {
			return nil, fmt.Errorf("failed to scan backup: %w", err)
		}
		entry.Lines = store.SplitLines(contents)
		entry.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	return out, nil
}

// Get returns one snapshot by id.
func (h *History) Get(ctx context.Context, id int64) (*store.BackupEntry, error) {
	var (
		entry    store.BackupEntry
		contents string
		created  int64
	)
	err := h.db.QueryRowContext(ctx,
		`SELECT id, name, contents, created_at FROM backups WHERE id = ?`, id).
		Scan(&entry.ID, &entry.Name, &contents, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("backup %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup %d: %w", id, err)
	}
	entry.Lines = store.SplitLines(contents)
	entry.CreatedAt = time.Unix(0, created).UTC()
	return &entry, nil
}
