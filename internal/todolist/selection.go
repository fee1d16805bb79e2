package todolist

import (
	"slices"
	"sync"

	"github.com/phrazzld/tasklist/internal/domain"
)

// Selection tracks selected tasks and tasks handed to an external editor.
// Both sets hold task references in the order they were added. The tasks
// themselves are never written; views read the selection through
// TaskList.GetSortedView.
type Selection struct {
	mu       sync.Mutex
	selected []*domain.Task
	editing  []*domain.Task
	onChange func(count int)
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{}
}

// SetChangeListener registers a callback run, without the lock held,
// whenever the number or identity of selected tasks changes.
func (s *Selection) SetChangeListener(fn func(count int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Select adds tasks to the selection.
func (s *Selection) Select(tasks ...*domain.Task) {
	s.mu.Lock()
	changed := false
	for _, t := range tasks {
		if t == nil || slices.Contains(s.selected, t) {
			continue
		}
		s.selected = append(s.selected, t)
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Deselect removes tasks from the selection.
func (s *Selection) Deselect(tasks ...*domain.Task) {
	s.mu.Lock()
	changed := s.dropSelectedLocked(tasks)
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Clear empties the selection. Pending edits are kept.
func (s *Selection) Clear() {
	s.mu.Lock()
	changed := len(s.selected) > 0
	s.selected = nil
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// IsSelected reports whether task is selected.
func (s *Selection) IsSelected(task *domain.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.selected, task)
}

// Selected returns the selected tasks in selection order.
func (s *Selection) Selected() []*domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.selected)
}

func (s *Selection) selectedSet() map[*domain.Task]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[*domain.Task]struct{}, len(s.selected))
	for _, t := range s.selected {
		set[t] = struct{}{}
	}
	return set
}

// Count returns the number of selected tasks.
func (s *Selection) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selected)
}

// EditPending records tasks as handed to an external editor.
func (s *Selection) EditPending(tasks ...*domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		if t != nil && !slices.Contains(s.editing, t) {
			s.editing = append(s.editing, t)
		}
	}
}

// PendingEdits returns the tasks awaiting an external edit.
func (s *Selection) PendingEdits() []*domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.editing)
}

// ClearPendingEdits forgets every pending edit.
func (s *Selection) ClearPendingEdits() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing = nil
}

// Forget drops tasks from both sets. The task list calls it for every
// task it removes so no reference outlives its task.
func (s *Selection) Forget(tasks ...*domain.Task) {
	if len(tasks) == 0 {
		return
	}

	s.mu.Lock()
	changed := s.dropSelectedLocked(tasks)
	s.editing = slices.DeleteFunc(s.editing, func(t *domain.Task) bool {
		return slices.Contains(tasks, t)
	})
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *Selection) dropSelectedLocked(tasks []*domain.Task) bool {
	before := len(s.selected)
	s.selected = slices.DeleteFunc(s.selected, func(t *domain.Task) bool {
		return slices.Contains(tasks, t)
	})
	return len(s.selected) != before
}

func (s *Selection) notify() {
	s.mu.Lock()
	fn := s.onChange
	count := len(s.selected)
	s.mu.Unlock()

	if fn != nil {
		fn(count)
	}
}
