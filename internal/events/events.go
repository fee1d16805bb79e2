package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a notification emitted by the task list.
type EventType string

// Notifications emitted to the surrounding application.
const (
	// ListChanged means the visible task list must be refreshed.
	ListChanged EventType = "list_changed"

	// SyncStarted and SyncFinished bracket every backend action.
	SyncStarted  EventType = "sync_started"
	SyncFinished EventType = "sync_finished"

	// PendingStateChanged reports the unsaved-changes indicator.
	PendingStateChanged EventType = "pending_state_changed"

	// SelectionChanged reports a change of the selected tasks.
	SelectionChanged EventType = "selection_changed"

	// Notice is a transient user-visible message.
	Notice EventType = "notice"
)

// ListChangedPayload accompanies ListChanged.
type ListChangedPayload struct {
	Reason string `json:"reason"`
	Size   int    `json:"size"`
}

// SyncPayload accompanies SyncStarted and SyncFinished.
type SyncPayload struct {
	Action string `json:"action"`
	Error  string `json:"error,omitempty"`
}

// PendingStatePayload accompanies PendingStateChanged.
type PendingStatePayload struct {
	ChangesPending bool `json:"changes_pending"`
}

// SelectionPayload accompanies SelectionChanged.
type SelectionPayload struct {
	Count int `json:"count"`
}

// NoticePayload accompanies Notice.
type NoticePayload struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Event is a single notification.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	Type EventType `json:"type"`

	// Payload contains the type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates a new Event with the specified type and payload.
func NewEvent(eventType EventType, payload any) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows the task list to publish notifications without knowing who
// listens.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}
