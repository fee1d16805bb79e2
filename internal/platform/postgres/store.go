package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/phrazzld/tasklist/internal/platform/logger"
	"github.com/phrazzld/tasklist/internal/store"
)

// DefaultFileName is the todo file used when no path is configured.
const DefaultFileName = "todo.txt"

// pingTimeout bounds the reachability check of IsOnline.
const pingTimeout = 3 * time.Second

// Open opens a pgx backed connection pool and verifies it with a ping.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL cannot be empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Store implements store.FileStore over the todo_files table.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ store.FileStore = (*Store)(nil)

// NewStore creates a Store over db.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Store{
		db:     db,
		logger: logger.With("component", "postgres_store"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// IsAuthenticated implements store.FileStore. Credentials are part of the
// connection string, so an open pool is authenticated.
func (s *Store) IsAuthenticated() bool {
	return true
}

// IsOnline implements store.FileStore.
func (s *Store) IsOnline() bool {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Debug("database ping failed", "error", err)
		return false
	}
	return true
}

// DefaultPath implements store.FileStore.
func (s *Store) DefaultPath() string {
	return DefaultFileName
}

// LoadContents implements store.FileStore.
func (s *Store) LoadContents(ctx context.Context, p string) (*store.RemoteContents, error) {
	p = cleanPath(p)

	var (
		contents string
		version  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT contents, version FROM todo_files WHERE path = $1`, p).
		Scan(&contents, &version)
	if err != nil {
		return nil, s.wrap(ctx, p, "load", err)
	}

	return &store.RemoteContents{
		RemoteID: formatVersion(version),
		Lines:    store.SplitLines(contents),
	}, nil
}

// SaveContents implements store.FileStore.
func (s *Store) SaveContents(ctx context.Context, p string, lines []string, eol string) (string, error) {
	p = cleanPath(p)
	version, err := upsert(ctx, s.db, p, store.JoinLines(lines, eol), s.now())
	if err != nil {
		return "", s.wrap(ctx, p, "save", err)
	}
	s.logger.Debug("saved todo file", "path", p, "lines", len(lines), "version", version)
	return formatVersion(version), nil
}

// AppendContents implements store.FileStore. The row is locked for the
// duration of the read-modify-write.
func (s *Store) AppendContents(ctx context.Context, p string, lines []string, eol string) error {
	if len(lines) == 0 {
		return nil
	}
	p = cleanPath(p)
	ctx = logger.WithLogger(ctx, s.logger)

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT contents FROM todo_files WHERE path = $1 FOR UPDATE`, p).
			Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if current != "" && !strings.HasSuffix(current, "\n") {
			if eol == "" {
				eol = store.EOLUnix
			}
			current += eol
		}
		_, err = upsert(ctx, tx, p, current+store.JoinLines(lines, eol), s.now())
		return err
	})
	if err != nil {
		return s.wrap(ctx, p, "append", err)
	}
	return nil
}

// RemoteVersion implements store.FileStore. A missing row has no version.
func (s *Store) RemoteVersion(ctx context.Context, p string) (string, error) {
	p = cleanPath(p)

	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM todo_files WHERE path = $1`, p).
		Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", s.wrap(ctx, p, "stat", err)
	}
	return formatVersion(version), nil
}

// ListFiles implements store.FileStore. Paths containing "/" below the
// listed directory are reported as folders.
func (s *Store) ListFiles(ctx context.Context, dir string, txtOnly bool) ([]store.FileEntry, error) {
	prefix := ""
	if d := strings.Trim(cleanPath(dir), "/"); dir != "" && d != "" && d != "." {
		prefix = d + "/"
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM todo_files WHERE path LIKE $1 ORDER BY path`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, s.wrap(ctx, prefix, "list", err)
	}
	defer func() { _ = rows.Close() }()

	folders := map[string]struct{}{}
	var files []store.FileEntry
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, s.wrap(ctx, prefix, "list", err)
		}
		rest := strings.TrimPrefix(p, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			folders[rest[:i]] = struct{}{}
			continue
		}
		if txtOnly && !store.IsTextFile(rest) {
			continue
		}
		files = append(files, store.FileEntry{Name: rest})
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(ctx, prefix, "list", err)
	}

	out := make([]store.FileEntry, 0, len(folders)+len(files))
	for name := range folders {
		out = append(out, store.FileEntry{Name: name, IsFolder: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return append(out, files...), nil
}

// upsert writes contents and returns the new version.
func upsert(ctx context.Context, db store.DBTX, p, contents string, now time.Time) (int64, error) {
	var version int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO todo_files (path, contents, version, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (path) DO UPDATE
		SET contents = EXCLUDED.contents,
			version = todo_files.version + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING version`,
		p, contents, now).Scan(&version)
	return version, err
}

func (s *Store) wrap(ctx context.Context, p, operation string, err error) error {
	mapped := MapError(err)
	if !store.IsNotFoundError(mapped) {
		logger.FromContext(ctx).Error("todo file query failed",
			"path", p,
			"operation", operation,
			"error", err)
	}
	return store.NewStoreError(p, operation, "database error", mapped)
}

func cleanPath(p string) string {
	if p == "" {
		return DefaultFileName
	}
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func formatVersion(v int64) string {
	return strconv.FormatInt(v, 10)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
