package store

import (
	"context"
	"time"
)

// CachedState is the persisted sync state of one todo file: the last
// serialized contents and the version token they correspond to.
type CachedState struct {
	Path             string    `yaml:"path"`
	Contents         string    `yaml:"contents"`
	LastSeenRemoteID string    `yaml:"last_seen_remote_id"`
	ChangesPending   bool      `yaml:"changes_pending"`
	SavedAt          time.Time `yaml:"saved_at"`
}

// CacheStore persists CachedState between runs.
type CacheStore interface {
	// LoadCache returns ErrCacheNotFound when nothing was saved yet.
	LoadCache(ctx context.Context) (*CachedState, error)
	SaveCache(ctx context.Context, state *CachedState) error
}
