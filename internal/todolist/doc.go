// Package todolist holds the in-memory working copy of a todo file and keeps
// it in step with a storage backend.
//
// TaskList owns the ordered collection and every mutation of it behind a
// single mutex. Selection tracks selected tasks and tasks out for external
// editing by reference. Syncer loads the collection from a store.FileStore,
// debounces saves after local edits and funnels all backend I/O through a
// queue.ActionQueue so that loads and saves never overlap.
//
// Tasks are tracked by pointer. Two tasks with identical text are distinct
// entries and removal, update and selection never confuse them.
package todolist
