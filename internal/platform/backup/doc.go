// Package backup keeps a history of todo file snapshots in SQLite.
//
// A snapshot is stored after every load and every local edit unless it
// equals the most recent snapshot of the same file. Snapshots older than
// the retention period are pruned on write.
package backup
