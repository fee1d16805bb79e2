// Package store defines the contracts between the task list and the places
// its contents live: the durable todo file backend (FileStore), the local
// sync cache (CacheStore) and the backup history (Backupper).
//
// Implementations live under internal/platform. Every implementation maps
// its native failures onto the sentinel errors declared here so callers can
// branch with errors.Is regardless of the backend in use.
package store
