// Package cachefile persists the sync cache as a YAML document.
package cachefile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/phrazzld/tasklist/internal/platform/localfs"
	"github.com/phrazzld/tasklist/internal/store"
)

// FileName is the cache file created inside the user cache directory.
const FileName = "sync-cache.yaml"

// Store is a store.CacheStore backed by one YAML file.
type Store struct {
	path   string
	logger *slog.Logger
}

var _ store.CacheStore = (*Store)(nil)

// New creates a Store writing to path.
func New(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("cache path cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Store{
		path:   path,
		logger: logger.With("component", "cachefile", "path", path),
	}, nil
}

// DefaultPath returns the cache location under the user cache directory.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return filepath.Join(dir, "tasklist", FileName), nil
}

// Path returns the cache file location.
func (s *Store) Path() string {
	return s.path
}

// LoadCache implements store.CacheStore. A corrupt cache is reported as
// missing so the next load rebuilds it from the backend.
func (s *Store) LoadCache(_ context.Context) (*store.CachedState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrCacheNotFound
	}
	if err != nil {
		return nil, store.NewStoreError(s.path, "load", "failed to read cache",
			fmt.Errorf("%w: %w", store.ErrIOFailure, err))
	}

	var state store.CachedState
	if err := yaml.Unmarshal(data, &state); err != nil {
		s.logger.Warn("discarding unreadable cache", "error", err)
		return nil, fmt.Errorf("%w: %w", store.ErrCacheNotFound, store.ErrParseFailure)
	}
	return &state, nil
}

// SaveCache implements store.CacheStore.
func (s *Store) SaveCache(_ context.Context, state *store.CachedState) error {
	if state == nil {
		return errors.New("cache state cannot be nil")
	}
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	if err := localfs.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return store.NewStoreError(s.path, "save", "failed to write cache",
			fmt.Errorf("%w: %w", store.ErrIOFailure, err))
	}
	return nil
}
