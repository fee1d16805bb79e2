package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/tasklist/internal/domain"
	"github.com/phrazzld/tasklist/internal/query"
	"github.com/phrazzld/tasklist/internal/queue"
	"github.com/phrazzld/tasklist/internal/store"
	"github.com/phrazzld/tasklist/internal/todolist"
)

// API-level errors.
var (
	// ErrTaskNotFound is returned when an index does not address a task.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidIndex is returned when an index path parameter is not a number.
	ErrInvalidIndex = errors.New("invalid task index")

	// ErrInvalidQuery is returned for malformed query parameters.
	ErrInvalidQuery = errors.New("invalid query parameter")
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrTaskNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrInvalidIndex),
		errors.Is(err, ErrInvalidQuery),
		errors.Is(err, domain.ErrEmptyTask),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidDeferSpec),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, query.ErrUnknownSortKey),
		errors.Is(err, store.ErrParseFailure):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrStateConflict),
		errors.Is(err, todolist.ErrNoDoneFile):
		return http.StatusConflict

	case errors.Is(err, store.ErrNotAuthenticated),
		errors.Is(err, store.ErrIOFailure),
		errors.Is(err, queue.ErrQueueClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrNotFound):
		return "Todo file not found"
	case errors.Is(err, ErrInvalidIndex):
		return "Invalid task index"
	case errors.Is(err, ErrInvalidQuery):
		return "Invalid query parameter"
	case errors.Is(err, domain.ErrEmptyTask):
		return "Task line is empty"
	case errors.Is(err, domain.ErrInvalidPriority):
		return "Invalid priority"
	case errors.Is(err, domain.ErrInvalidDeferSpec),
		errors.Is(err, domain.ErrInvalidDate):
		return "Invalid defer date"
	case errors.Is(err, query.ErrUnknownSortKey):
		return "Unknown sort key"
	case errors.Is(err, store.ErrParseFailure):
		return "Invalid task data"
	case errors.Is(err, store.ErrStateConflict):
		return "Todo file was changed concurrently"
	case errors.Is(err, todolist.ErrNoDoneFile):
		return "No done file configured"
	case errors.Is(err, store.ErrNotAuthenticated):
		return "Storage backend not authenticated"
	case errors.Is(err, store.ErrIOFailure):
		return "Storage backend unavailable"
	case errors.Is(err, queue.ErrQueueClosed):
		return "Session is shutting down"
	default:
		return "An unexpected error occurred"
	}
}
