// Package queue provides ActionQueue, a serialized background executor.
//
// Every action runs on a single worker goroutine, strictly in submission
// order and never concurrently with another action. A failing or panicking
// action is logged and reported to the error handler; it never stops the
// worker or the actions queued after it.
package queue
