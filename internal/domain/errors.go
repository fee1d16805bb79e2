package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrEmptyTask is returned when a line holds no task text.
	ErrEmptyTask = errors.New("task line is empty")

	// ErrInvalidPriority is returned when a priority is not a letter A-Z.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidDate is returned when a date is not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidDeferSpec is returned when a defer spec cannot be interpreted
	// as a date, an interval or a natural-language expression.
	ErrInvalidDeferSpec = errors.New("invalid defer spec")

	// ErrInvalidInterval is returned when a recurrence interval is malformed.
	ErrInvalidInterval = errors.New("invalid interval")
)
