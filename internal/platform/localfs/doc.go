// Package localfs implements store.FileStore on the local filesystem.
//
// Every read and write of a todo file holds a gofrs/flock lock on a
// sibling ".lock" file, so several tasklist processes can share one file.
// Saves are atomic (temporary file plus rename). The version token is
// derived from the modification time and size of the file.
//
// Watcher reports changes made by other programs through fsnotify.
package localfs
