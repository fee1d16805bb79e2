// Package events provides the notifications the task list publishes to the
// surrounding application: list changes, sync progress, the unsaved-changes
// indicator, selection changes and transient notices.
//
// The primary components are:
// - Event: a typed notification with a JSON payload
// - EventHandler: interface for components that consume events
// - EventEmitter: interface for components that publish events
// - InMemoryEventEmitter: synchronous fan-out to registered handlers
package events
