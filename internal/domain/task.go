package domain

import (
	"fmt"
	"strings"
)

// Keys of the key:value tokens a task understands.
const (
	DueKey        = "due"
	ThresholdKey  = "t"
	RecurrenceKey = "rec"
)

// DateType selects which date a defer operation moves.
type DateType int

// Supported defer targets.
const (
	DateDue DateType = iota
	DateThreshold
)

// String returns the token key of the date type.
func (d DateType) String() string {
	if d == DateThreshold {
		return ThresholdKey
	}
	return DueKey
}

// Task is a single todo.txt line:
//
//	[x <completed>] [(<priority>)] [<created>] <text with @lists +tags key:value>
type Task struct {
	completed      bool
	completionDate string
	priority       Priority
	createDate     string
	text           string
	selected       bool
}

// ParseTask parses a todo.txt line. Blank lines are rejected with ErrEmptyTask.
func ParseTask(line string) (*Task, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, ErrEmptyTask
	}

	t := &Task{}
	rest := line
	if rest == "x" || strings.HasPrefix(rest, "x ") {
		t.completed = true
		rest = strings.TrimPrefix(strings.TrimPrefix(rest, "x"), " ")
		if d, r, ok := cutDate(rest); ok {
			t.completionDate = d
			rest = r
		}
	}
	if len(rest) >= 3 && isPriorityCode(rest[:3]) && (len(rest) == 3 || rest[3] == ' ') {
		t.priority = Priority(rest[1])
		rest = strings.TrimPrefix(rest[3:], " ")
	}
	if d, r, ok := cutDate(rest); ok {
		t.createDate = d
		rest = r
	}
	t.text = rest
	return t, nil
}

// MustParseTask is ParseTask for literals known to be valid.
func MustParseTask(line string) *Task {
	t, err := ParseTask(line)
	if err != nil {
		panic(fmt.Sprintf("domain: invalid task literal %q: %v", line, err))
	}
	return t
}

func cutDate(s string) (string, string, bool) {
	if len(s) < len(DateLayout) || !IsDate(s[:len(DateLayout)]) {
		return "", s, false
	}
	if len(s) == len(DateLayout) {
		return s, "", true
	}
	if s[len(DateLayout)] != ' ' {
		return "", s, false
	}
	return s[:len(DateLayout)], s[len(DateLayout)+1:], true
}

// ToLine serializes the task back into todo.txt form.
func (t *Task) ToLine() string {
	parts := make([]string, 0, 5)
	if t.completed {
		parts = append(parts, "x")
		if t.completionDate != "" {
			parts = append(parts, t.completionDate)
		}
	}
	if t.priority != PriorityNone {
		parts = append(parts, t.priority.Code())
	}
	if t.createDate != "" {
		parts = append(parts, t.createDate)
	}
	if t.text != "" {
		parts = append(parts, t.text)
	}
	return strings.Join(parts, " ")
}

// String implements fmt.Stringer.
func (t *Task) String() string {
	return t.ToLine()
}

// Equal compares two tasks by content.
func (t *Task) Equal(other *Task) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.ToLine() == other.ToLine()
}

// Completed reports whether the task is done.
func (t *Task) Completed() bool { return t.completed }

// CompletionDate returns the date the task was completed, if recorded.
func (t *Task) CompletionDate() string { return t.completionDate }

// CreateDate returns the creation date, if recorded.
func (t *Task) CreateDate() string { return t.createDate }

// SetCreateDate sets the creation date. An invalid date is ignored.
func (t *Task) SetCreateDate(date string) {
	if date == "" || IsDate(date) {
		t.createDate = date
	}
}

// Text returns the task body without completion, priority or creation prefix.
func (t *Task) Text() string { return t.text }

// Priority returns the task priority.
func (t *Task) Priority() Priority { return t.priority }

// SetPriority sets the task priority.
func (t *Task) SetPriority(p Priority) { t.priority = p }

// Selected reports the selection flag.
func (t *Task) Selected() bool { return t.selected }

// SetSelected sets the selection flag. It is not part of the serialized line
// and is only set on view copies.
func (t *Task) SetSelected(selected bool) { t.selected = selected }

// Clone returns an independent copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}

// Lists returns the distinct @lists of the task in order of appearance.
func (t *Task) Lists() []string { return t.prefixed('@') }

// Tags returns the distinct +tags of the task in order of appearance.
func (t *Task) Tags() []string { return t.prefixed('+') }

// DueDate returns the due: date, or "".
func (t *Task) DueDate() string { return t.keyValue(DueKey) }

// ThresholdDate returns the t: date, or "".
func (t *Task) ThresholdDate() string { return t.keyValue(ThresholdKey) }

// Recurrence returns the rec: interval, or "".
func (t *Task) Recurrence() string { return t.keyValue(RecurrenceKey) }

// InFuture reports whether the threshold date lies after today.
func (t *Task) InFuture(today string) bool {
	th := t.ThresholdDate()
	return th != "" && th > today
}

// MarkComplete completes the task and returns the next instance of a
// recurring task, or nil. Completing an already completed task is a no-op.
func (t *Task) MarkComplete(today string) *Task {
	if t.completed {
		return nil
	}
	t.completed = true
	t.completionDate = today

	rec := t.Recurrence()
	if rec == "" || !IsInterval(rec) {
		return nil
	}
	strict := strings.HasPrefix(rec, "+")
	interval := strings.TrimPrefix(rec, "+")

	next := &Task{priority: t.priority, text: t.text}
	if t.createDate != "" {
		next.createDate = today
	}
	for _, key := range []string{DueKey, ThresholdKey} {
		cur := t.keyValue(key)
		if cur == "" {
			continue
		}
		base := today
		if strict && IsDate(cur) {
			base = cur
		}
		if d, err := AddInterval(base, interval); err == nil {
			next.setKeyValue(key, d)
		}
	}
	return next
}

// MarkIncomplete reopens a completed task.
func (t *Task) MarkIncomplete() {
	t.completed = false
	t.completionDate = ""
}

// DeferDueDate moves the due date. See Defer for the accepted specs.
func (t *Task) DeferDueDate(spec, today string) error {
	return t.Defer(spec, today, DateDue)
}

// DeferThresholdDate moves the threshold date. See Defer for the accepted specs.
func (t *Task) DeferThresholdDate(spec, today string) error {
	return t.Defer(spec, today, DateThreshold)
}

// Defer moves the date selected by dateType according to spec:
//
//	""            removes the date
//	"2024-05-01"  sets it
//	"3d", "2w"    today plus the interval
//	"+3d"         the current date (or today) plus the interval
//	"next monday" natural language, relative to today
//
// An unusable spec returns ErrInvalidDeferSpec and leaves the task unchanged.
func (t *Task) Defer(spec, today string, dateType DateType) error {
	key := dateType.String()
	spec = strings.TrimSpace(spec)

	switch {
	case spec == "":
		t.setKeyValue(key, "")
		return nil
	case IsDate(spec):
		t.setKeyValue(key, spec)
		return nil
	case IsInterval(spec):
		base := today
		if strings.HasPrefix(spec, "+") {
			if cur := t.keyValue(key); IsDate(cur) {
				base = cur
			}
		}
		d, err := AddInterval(base, strings.TrimPrefix(spec, "+"))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDeferSpec, err)
		}
		t.setKeyValue(key, d)
		return nil
	}

	d, err := ParseNaturalDate(spec, today)
	if err != nil {
		return err
	}
	t.setKeyValue(key, d)
	return nil
}

func (t *Task) prefixed(prefix byte) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(t.text) {
		if len(tok) < 2 || tok[0] != prefix {
			continue
		}
		name := tok[1:]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func (t *Task) keyValue(key string) string {
	prefix := key + ":"
	for _, tok := range strings.Fields(t.text) {
		if strings.HasPrefix(tok, prefix) && len(tok) > len(prefix) {
			return tok[len(prefix):]
		}
	}
	return ""
}

// setKeyValue replaces the first key:value token, appends one when absent,
// or removes it when value is empty.
func (t *Task) setKeyValue(key, value string) {
	prefix := key + ":"
	tokens := strings.Fields(t.text)
	out := make([]string, 0, len(tokens)+1)
	found := false
	for _, tok := range tokens {
		if !found && strings.HasPrefix(tok, prefix) && len(tok) > len(prefix) {
			found = true
			if value != "" {
				out = append(out, prefix+value)
			}
			continue
		}
		out = append(out, tok)
	}
	if !found && value != "" {
		out = append(out, prefix+value)
	}
	t.text = strings.Join(out, " ")
}
