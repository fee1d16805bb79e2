package todolist

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/phrazzld/tasklist/internal/domain"
)

// OnAddFunc may substitute a task before it is added, e.g. to stamp a
// creation date. Returning nil keeps the original.
type OnAddFunc func(task *domain.Task) *domain.Task

// ViewStrategy orders and filters a snapshot for display.
type ViewStrategy interface {
	// FileOrder reports whether the base order is file order (true) or
	// reverse file order (false).
	FileOrder() bool

	// Comparator may return nil when only the base order applies.
	Comparator(caseSensitive bool) func(a, b *domain.Task) int

	Filter(tasks []*domain.Task, caseSensitive bool) []*domain.Task
}

// ViewEntry is one task of a view. Line, Index and Selected are captured
// under the list lock; Task is the live task to hand back to mutations and
// must not be read directly while other goroutines mutate the list.
type ViewEntry struct {
	Task     *domain.Task
	Line     string
	Index    int
	Selected bool
}

// Option configures a TaskList.
type Option func(*TaskList)

// WithOnAdd installs the add hook.
func WithOnAdd(fn OnAddFunc) Option {
	return func(l *TaskList) { l.onAdd = fn }
}

// WithToday overrides the clock used for completion dates and defers.
func WithToday(fn func() string) Option {
	return func(l *TaskList) { l.today = fn }
}

// TaskList is the ordered task collection. All methods are safe for
// concurrent use and observe only fully applied mutations.
type TaskList struct {
	mu    sync.Mutex
	items []*domain.Task
	rev   uint64 // bumped by every mutation

	// derived caches, nil when invalid
	lists      []string
	tags       []string
	priorities []domain.Priority

	selection *Selection
	onAdd     OnAddFunc
	onChange  func(reason string)
	today     func() string
	logger    *slog.Logger
}

// NewTaskList creates an empty list. A nil selection gets a fresh one.
func NewTaskList(selection *Selection, logger *slog.Logger, opts ...Option) *TaskList {
	if selection == nil {
		selection = NewSelection()
	}
	l := &TaskList{
		selection: selection,
		today:     domain.Today,
		logger:    logger.With("component", "task_list"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetChangeListener registers the callback run after every mutation. It is
// called without the list lock held. Replace does not call it.
func (l *TaskList) SetChangeListener(fn func(reason string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// Selection returns the selection tracker bound to this list.
func (l *TaskList) Selection() *Selection {
	return l.selection
}

func (l *TaskList) changed(reason string) {
	l.mu.Lock()
	fn := l.onChange
	l.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

// Add inserts items at the end or the front of the list, keeping their
// relative order, and returns the tasks actually stored after the add hook.
// Tasks already in the list are skipped.
func (l *TaskList) Add(items []*domain.Task, atEnd bool) []*domain.Task {
	l.mu.Lock()
	hooked := make([]*domain.Task, 0, len(items))
	for _, t := range items {
		if t == nil {
			continue
		}
		if l.onAdd != nil {
			if sub := l.onAdd(t); sub != nil {
				t = sub
			}
		}
		hooked = append(hooked, t)
	}
	added := l.insertLocked(hooked, atEnd)
	l.invalidateLocked()
	l.rev++
	l.mu.Unlock()

	l.changed("add")
	return added
}

// insertLocked adds tasks not yet present, deduplicated by identity.
func (l *TaskList) insertLocked(tasks []*domain.Task, atEnd bool) []*domain.Task {
	fresh := make([]*domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t == nil || l.indexLocked(t) >= 0 || slices.Contains(fresh, t) {
			continue
		}
		fresh = append(fresh, t)
	}
	if atEnd {
		l.items = append(l.items, fresh...)
	} else {
		l.items = append(slices.Clone(fresh), l.items...)
	}
	return fresh
}

// RemoveAll removes the given tasks by identity and drops them from the
// selection and pending edits.
func (l *TaskList) RemoveAll(tasks []*domain.Task) {
	l.mu.Lock()
	removed := l.removeLocked(tasks)
	l.invalidateLocked()
	l.rev++
	l.mu.Unlock()

	l.selection.Forget(removed...)
	l.changed("remove")
}

func (l *TaskList) removeLocked(tasks []*domain.Task) []*domain.Task {
	var removed []*domain.Task
	l.items = slices.DeleteFunc(l.items, func(t *domain.Task) bool {
		if slices.Contains(tasks, t) {
			removed = append(removed, t)
			return true
		}
		return false
	})
	return removed
}

// Complete marks tasks complete. Successors spawned by recurring tasks are
// inserted at the end or the front per extraAtEnd. Without keepPriority the
// completed tasks lose their priority.
func (l *TaskList) Complete(tasks []*domain.Task, keepPriority, extraAtEnd bool) []*domain.Task {
	l.mu.Lock()
	today := l.today()
	var successors []*domain.Task
	for _, t := range tasks {
		if next := t.MarkComplete(today); next != nil {
			successors = append(successors, next)
		}
		if !keepPriority {
			t.SetPriority(domain.PriorityNone)
		}
	}
	l.priorities = nil
	if len(successors) > 0 {
		l.insertLocked(successors, extraAtEnd)
		l.invalidateLocked()
	}
	l.rev++
	l.mu.Unlock()

	l.changed("complete")
	return successors
}

// Uncomplete reopens tasks.
func (l *TaskList) Uncomplete(tasks []*domain.Task) {
	l.mu.Lock()
	for _, t := range tasks {
		t.MarkIncomplete()
	}
	l.rev++
	l.mu.Unlock()

	l.changed("uncomplete")
}

// Prioritize sets the priority of tasks.
func (l *TaskList) Prioritize(tasks []*domain.Task, priority domain.Priority) {
	l.mu.Lock()
	for _, t := range tasks {
		t.SetPriority(priority)
	}
	l.priorities = nil
	l.rev++
	l.mu.Unlock()

	l.changed("prioritize")
}

// Defer moves the due or threshold date of tasks. Tasks the spec cannot be
// applied to are left unchanged; their errors are joined in the result
// while the remaining tasks are still deferred.
func (l *TaskList) Defer(spec string, tasks []*domain.Task, dateType domain.DateType) error {
	l.mu.Lock()
	today := l.today()
	var errs []error
	for _, t := range tasks {
		if err := t.Defer(spec, today, dateType); err != nil {
			l.logger.Warn("defer failed, task unchanged",
				"spec", spec,
				"date_type", dateType.String(),
				"task", t.ToLine(),
				"error", err)
			errs = append(errs, err)
		}
	}
	l.rev++
	l.mu.Unlock()

	l.changed("defer")
	return errors.Join(errs...)
}

// Update replaces originals with updates pairwise, in place when the
// original is still present and otherwise by adding the update. Surplus
// originals are removed and surplus updates are added.
func (l *TaskList) Update(originals, updated []*domain.Task, addAtEnd bool) {
	l.mu.Lock()
	n := min(len(originals), len(updated))
	var dropped []*domain.Task
	for i := 0; i < n; i++ {
		orig, next := originals[i], updated[i]
		if next == nil {
			continue
		}
		idx := l.indexLocked(orig)
		switch {
		case idx >= 0 && orig == next:
		case idx >= 0:
			if l.indexLocked(next) >= 0 {
				l.items = slices.Delete(l.items, idx, idx+1)
			} else {
				l.items[idx] = next
			}
			dropped = append(dropped, orig)
		default:
			l.insertLocked([]*domain.Task{next}, addAtEnd)
		}
	}
	if len(originals) > n {
		dropped = append(dropped, l.removeLocked(originals[n:])...)
	}
	if len(updated) > n {
		l.insertLocked(updated[n:], addAtEnd)
	}
	l.invalidateLocked()
	l.rev++
	l.mu.Unlock()

	l.selection.Forget(dropped...)
	l.changed("update")
}

// Replace swaps the whole collection without notifying the change
// listener. It is the reload path: the new contents are not a local edit.
func (l *TaskList) Replace(tasks []*domain.Task) {
	l.mu.Lock()
	old := l.replaceLocked(tasks)
	l.mu.Unlock()

	l.selection.Forget(old...)
}

// Revision returns a counter that every mutation, Replace included, bumps.
func (l *TaskList) Revision() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rev
}

// ReplaceIfUnchanged is Replace guarded by a revision taken earlier with
// Revision. It returns false, leaving the list alone, when any mutation
// happened since.
func (l *TaskList) ReplaceIfUnchanged(rev uint64, tasks []*domain.Task) bool {
	l.mu.Lock()
	if l.rev != rev {
		l.mu.Unlock()
		return false
	}
	old := l.replaceLocked(tasks)
	l.mu.Unlock()

	l.selection.Forget(old...)
	return true
}

func (l *TaskList) replaceLocked(tasks []*domain.Task) []*domain.Task {
	old := l.items
	l.items = nil
	l.insertLocked(tasks, true)
	l.invalidateLocked()
	l.rev++
	return old
}

// GetSortedView snapshots the collection, applies the base order and the
// strategy's comparator, then filters. It returns the visible entries and
// the number of tasks before filtering. A nil strategy returns file order.
//
// Sorting and filtering run on copies taken under the lock, so concurrent
// mutations never race with the comparator.
func (l *TaskList) GetSortedView(strategy ViewStrategy, caseSensitive bool) ([]ViewEntry, int) {
	selected := l.selection.selectedSet()

	l.mu.Lock()
	entries := make([]ViewEntry, len(l.items))
	copies := make([]*domain.Task, len(l.items))
	for i, t := range l.items {
		_, sel := selected[t]
		entries[i] = ViewEntry{Task: t, Line: t.ToLine(), Index: i, Selected: sel}
		copies[i] = t.Clone()
		copies[i].SetSelected(sel)
	}
	l.mu.Unlock()

	total := len(entries)
	if strategy == nil {
		return entries, total
	}

	byCopy := make(map[*domain.Task]ViewEntry, total)
	for i, c := range copies {
		byCopy[c] = entries[i]
	}
	if !strategy.FileOrder() {
		slices.Reverse(copies)
	}
	if cmp := strategy.Comparator(caseSensitive); cmp != nil {
		slices.SortStableFunc(copies, cmp)
	}
	visible := strategy.Filter(copies, caseSensitive)
	return lo.Map(visible, func(c *domain.Task, _ int) ViewEntry { return byCopy[c] }), total
}

// Describe captures the line, file-order index and selection state of
// tasks under the lock. Tasks no longer in the list get index -1.
func (l *TaskList) Describe(tasks []*domain.Task) []ViewEntry {
	selected := l.selection.selectedSet()

	l.mu.Lock()
	defer l.mu.Unlock()
	return lo.Map(tasks, func(t *domain.Task, _ int) ViewEntry {
		_, sel := selected[t]
		return ViewEntry{Task: t, Line: t.ToLine(), Index: l.indexLocked(t), Selected: sel}
	})
}

// CompletedTasks returns the completed tasks in file order.
func (l *TaskList) CompletedTasks() []*domain.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo.Filter(l.items, func(t *domain.Task, _ int) bool { return t.Completed() })
}

// Size returns the number of tasks.
func (l *TaskList) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Tasks returns a snapshot of the collection in file order.
func (l *TaskList) Tasks() []*domain.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}

// TaskAt returns the task at a file-order index.
func (l *TaskList) TaskAt(index int) (*domain.Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.items) {
		return nil, false
	}
	return l.items[index], true
}

// IndexOf returns the file-order index of task, or -1.
func (l *TaskList) IndexOf(task *domain.Task) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.indexLocked(task)
}

func (l *TaskList) indexLocked(task *domain.Task) int {
	return slices.Index(l.items, task)
}

// Each calls fn for every task in file order while holding the lock; fn
// must not call back into the list.
func (l *TaskList) Each(fn func(index int, task *domain.Task)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, t := range l.items {
		fn(i, t)
	}
}

// Lines serializes the collection in file order.
func (l *TaskList) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo.Map(l.items, func(t *domain.Task, _ int) string { return t.ToLine() })
}

// Contexts returns the sorted distinct @lists. The slice is cached until
// the next mutation and must not be modified.
func (l *TaskList) Contexts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lists == nil {
		l.lists = distinctSorted(l.items, (*domain.Task).Lists)
	}
	return l.lists
}

// Projects returns the sorted distinct +tags. The slice is cached until
// the next mutation and must not be modified.
func (l *TaskList) Projects() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tags == nil {
		l.tags = distinctSorted(l.items, (*domain.Task).Tags)
	}
	return l.tags
}

// Priorities returns the distinct priorities in use, A first and none last.
// The slice is cached until the next mutation and must not be modified.
func (l *TaskList) Priorities() []domain.Priority {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.priorities == nil {
		ps := lo.Uniq(lo.Map(l.items, func(t *domain.Task, _ int) domain.Priority { return t.Priority() }))
		slices.SortFunc(ps, domain.ComparePriority)
		l.priorities = ps
	}
	return l.priorities
}

func (l *TaskList) invalidateLocked() {
	l.lists = nil
	l.tags = nil
	l.priorities = nil
}

func distinctSorted(items []*domain.Task, names func(*domain.Task) []string) []string {
	out := lo.Uniq(lo.FlatMap(items, func(t *domain.Task, _ int) []string { return names(t) }))
	slices.Sort(out)
	return out
}
