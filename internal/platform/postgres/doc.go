// Package postgres provides the PostgreSQL implementation of the
// store.FileStore interface. Each todo file is one row of the todo_files
// table; its version column is the version token and is incremented by
// every write. The schema is managed with goose migrations embedded in
// the binary.
package postgres
