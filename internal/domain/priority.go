package domain

import (
	"fmt"
	"strings"
)

// Priority is a todo.txt priority letter. The zero value means no priority.
type Priority byte

// PriorityNone marks a task without a priority.
const PriorityNone Priority = 0

// ParsePriority accepts a single letter (either case). An empty string or
// "-" yields PriorityNone.
func ParsePriority(s string) (Priority, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return PriorityNone, nil
	}
	if len(s) != 1 {
		return PriorityNone, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
	c := strings.ToUpper(s)[0]
	if c < 'A' || c > 'Z' {
		return PriorityNone, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
	return Priority(c), nil
}

// String returns the priority letter, or "" for PriorityNone.
func (p Priority) String() string {
	if p == PriorityNone {
		return ""
	}
	return string(rune(p))
}

// Code returns the priority as it appears in a task line, e.g. "(A)".
func (p Priority) Code() string {
	if p == PriorityNone {
		return ""
	}
	return "(" + p.String() + ")"
}

// ComparePriority orders A before Z and PriorityNone after every letter.
func ComparePriority(a, b Priority) int {
	switch {
	case a == b:
		return 0
	case a == PriorityNone:
		return 1
	case b == PriorityNone:
		return -1
	case a < b:
		return -1
	default:
		return 1
	}
}

func isPriorityCode(s string) bool {
	return len(s) == 3 && s[0] == '(' && s[1] >= 'A' && s[1] <= 'Z' && s[2] == ')'
}
