// Package api serves one task list session over HTTP. Handlers translate
// requests into TaskList mutations and Syncer calls; saving follows from
// the list's change listener exactly as it does for CLI edits. Tasks are
// addressed by their file-order index.
package api
