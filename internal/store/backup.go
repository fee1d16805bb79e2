package store

import (
	"context"
	"time"
)

// BackupEntry is one stored snapshot of a todo file.
type BackupEntry struct {
	ID        int64
	Name      string
	Lines     []string
	CreatedAt time.Time
}

// Backupper records snapshots of todo file contents.
type Backupper interface {
	// Backup stores a snapshot unless it equals the latest one for name.
	Backup(ctx context.Context, name string, lines []string) error
}
