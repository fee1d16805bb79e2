package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/phrazzld/tasklist/internal/store"
)

// DefaultFileName is the todo file used when no path is configured.
const DefaultFileName = "todo.txt"

// lockRetryDelay is how often a blocked lock attempt is retried.
const lockRetryDelay = 20 * time.Millisecond

// Store is a store.FileStore rooted at a directory. Relative paths are
// resolved against the root; absolute paths are used as they are.
type Store struct {
	root   string
	logger *slog.Logger
}

var _ store.FileStore = (*Store)(nil)

// New creates a Store rooted at root, creating the directory if needed.
func New(root string, logger *slog.Logger) (*Store, error) {
	if root == "" {
		return nil, errors.New("root directory cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create root directory %s: %w", root, err)
	}
	return &Store{
		root:   root,
		logger: logger.With("component", "localfs", "root", root),
	}, nil
}

// Resolve returns the filesystem path of a todo file path.
func (s *Store) Resolve(path string) string {
	if path == "" {
		path = DefaultFileName
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.root, path)
}

// IsAuthenticated is always true: the local filesystem needs no credentials.
func (s *Store) IsAuthenticated() bool {
	return true
}

// IsOnline reports whether the root directory is reachable.
func (s *Store) IsOnline() bool {
	info, err := os.Stat(s.root)
	return err == nil && info.IsDir()
}

// DefaultPath implements store.FileStore.
func (s *Store) DefaultPath() string {
	return DefaultFileName
}

// LoadContents implements store.FileStore.
func (s *Store) LoadContents(ctx context.Context, path string) (*store.RemoteContents, error) {
	full := s.Resolve(path)

	unlock, err := s.lock(ctx, full, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, mapError(full, "load", err)
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, mapError(full, "load", err)
	}

	return &store.RemoteContents{
		RemoteID: Version(info),
		Lines:    store.SplitLines(string(data)),
	}, nil
}

// SaveContents implements store.FileStore.
func (s *Store) SaveContents(ctx context.Context, path string, lines []string, eol string) (string, error) {
	full := s.Resolve(path)

	unlock, err := s.lock(ctx, full, true)
	if err != nil {
		return "", err
	}
	defer unlock()

	if err := WriteFileAtomic(full, []byte(store.JoinLines(lines, eol)), 0o644); err != nil {
		return "", mapError(full, "save", err)
	}
	info, err := os.Stat(full)
	if err != nil {
		return "", mapError(full, "save", err)
	}

	s.logger.Debug("saved todo file", "path", full, "lines", len(lines))
	return Version(info), nil
}

// AppendContents implements store.FileStore. A file whose last line is
// not terminated gets a terminator before the appended lines.
func (s *Store) AppendContents(ctx context.Context, path string, lines []string, eol string) error {
	if len(lines) == 0 {
		return nil
	}
	full := s.Resolve(path)

	unlock, err := s.lock(ctx, full, true)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return mapError(full, "append", err)
	}
	f, err := os.OpenFile(full, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return mapError(full, "append", err)
	}
	defer func() { _ = f.Close() }()

	payload := store.JoinLines(lines, eol)
	if unterminated, err := lacksTrailingNewline(f); err != nil {
		return mapError(full, "append", err)
	} else if unterminated {
		if eol == "" {
			eol = store.EOLUnix
		}
		payload = eol + payload
	}

	if _, err := f.WriteString(payload); err != nil {
		return mapError(full, "append", err)
	}
	return nil
}

// RemoteVersion implements store.FileStore. A missing file has no version.
func (s *Store) RemoteVersion(_ context.Context, path string) (string, error) {
	full := s.Resolve(path)
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", mapError(full, "stat", err)
	}
	return Version(info), nil
}

// ListFiles implements store.FileStore. Folders come first, then files,
// both by name. Lock and temporary files are never listed.
func (s *Store) ListFiles(_ context.Context, path string, txtOnly bool) ([]store.FileEntry, error) {
	dir := s.root
	if path != "" {
		dir = s.Resolve(path)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, mapError(dir, "list", err)
	}

	out := make([]store.FileEntry, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, lockSuffix) || strings.HasSuffix(name, tmpSuffix) {
			continue
		}
		if txtOnly && !e.IsDir() && !store.IsTextFile(name) {
			continue
		}
		out = append(out, store.FileEntry{Name: name, IsFolder: e.IsDir()})
	}
	slices.SortStableFunc(out, func(a, b store.FileEntry) int {
		switch {
		case a.IsFolder == b.IsFolder:
			return strings.Compare(a.Name, b.Name)
		case a.IsFolder:
			return -1
		default:
			return 1
		}
	})
	return out, nil
}

// Version derives the version token of a file from its metadata.
func Version(info fs.FileInfo) string {
	return fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size())
}

const (
	lockSuffix = ".lock"
	tmpSuffix  = ".tmp"
)

// lock takes the cross-process lock of full, exclusive for writes and
// shared for reads, and returns the release function.
func (s *Store) lock(ctx context.Context, full string, exclusive bool) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, mapError(full, "lock", err)
	}

	fl := flock.New(full + lockSuffix)
	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = fl.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = fl.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return nil, store.NewStoreError(full, "lock", "failed to acquire file lock",
			fmt.Errorf("%w: %w", store.ErrIOFailure, err))
	}
	if !locked {
		return nil, store.NewStoreError(full, "lock", "file lock not acquired", store.ErrIOFailure)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release file lock", "path", full, "error", err)
		}
	}, nil
}

// WriteFileAtomic writes data to a temporary sibling of path and renames
// it into place, so readers see either the old or the new contents.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + tmpSuffix
	defer func() { _ = os.Remove(tmp) }()

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("failed to write temporary file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

func lacksTrailingNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

// mapError translates filesystem errors into the store error taxonomy.
func mapError(path, operation string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return store.NewStoreError(path, operation, "file does not exist",
			fmt.Errorf("%w: %w", store.ErrTodoFileNotFound, err))
	}
	return store.NewStoreError(path, operation, "filesystem error",
		fmt.Errorf("%w: %w", store.ErrIOFailure, err))
}
