// Package domain contains the todo.txt task entity and the value types it
// is built from: priorities, dates and recurrence intervals.
//
// A Task is a mutable record. Equality between tasks is by content (see
// Task.Equal); collections that need to distinguish two tasks with
// identical text must compare pointers.
package domain
