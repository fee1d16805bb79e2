package todolist

import (
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasklist/internal/domain"
	"github.com/phrazzld/tasklist/internal/platform/logger"
	"github.com/phrazzld/tasklist/internal/query"
)

func newTestList(opts ...Option) *TaskList {
	opts = append([]Option{WithToday(func() string { return "2024-05-10" })}, opts...)
	return NewTaskList(nil, logger.DiscardLogger(), opts...)
}

func parse(lines ...string) []*domain.Task {
	out := make([]*domain.Task, len(lines))
	for i, l := range lines {
		out[i] = domain.MustParseTask(l)
	}
	return out
}

func viewLines(view []ViewEntry) []string {
	out := make([]string, len(view))
	for i, e := range view {
		out[i] = e.Line
	}
	return out
}

func TestTaskList_Scenario(t *testing.T) {
	l := newTestList()
	tasks := parse("(A) one", "(B) two", "(C) three")

	l.Add(tasks, true)
	require.Equal(t, 3, l.Size())
	assert.Equal(t, []string{"(A) one", "(B) two", "(C) three"}, l.Lines())

	l.Complete([]*domain.Task{tasks[1]}, false, true)
	assert.Equal(t, 3, l.Size())
	assert.True(t, tasks[1].Completed())
	assert.Equal(t, domain.PriorityNone, tasks[1].Priority())

	l.RemoveAll([]*domain.Task{tasks[0]})
	assert.Equal(t, 2, l.Size())
	assert.Equal(t, -1, l.IndexOf(tasks[0]))
}

func TestTaskList_Add(t *testing.T) {
	t.Run("front keeps batch order", func(t *testing.T) {
		l := newTestList()
		l.Add(parse("c"), true)
		l.Add(parse("a", "b"), false)
		assert.Equal(t, []string{"a", "b", "c"}, l.Lines())
	})

	t.Run("same reference added once", func(t *testing.T) {
		l := newTestList()
		task := domain.MustParseTask("dup")
		added := l.Add([]*domain.Task{task, task}, true)
		l.Add([]*domain.Task{task}, true)

		assert.Len(t, added, 1)
		assert.Equal(t, 1, l.Size())
	})

	t.Run("identical text is distinct", func(t *testing.T) {
		l := newTestList()
		l.Add(parse("same", "same"), true)
		assert.Equal(t, 2, l.Size())
	})

	t.Run("on add hook substitutes", func(t *testing.T) {
		l := newTestList(WithOnAdd(func(task *domain.Task) *domain.Task {
			if task.CreateDate() != "" {
				return nil
			}
			stamped := domain.MustParseTask(task.ToLine())
			stamped.SetCreateDate("2024-05-10")
			return stamped
		}))
		orig := parse("new task", "2024-01-01 dated")

		added := l.Add(orig, true)

		require.Len(t, added, 2)
		assert.NotSame(t, orig[0], added[0])
		assert.Same(t, orig[1], added[1])
		assert.Equal(t, []string{"2024-05-10 new task", "2024-01-01 dated"}, l.Lines())
	})
}

func TestTaskList_RemoveAllByIdentity(t *testing.T) {
	l := newTestList()
	tasks := parse("same", "same", "other")
	l.Add(tasks, true)

	l.RemoveAll([]*domain.Task{tasks[1]})

	assert.Equal(t, 2, l.Size())
	assert.Equal(t, 0, l.IndexOf(tasks[0]))
	assert.Equal(t, -1, l.IndexOf(tasks[1]))
}

func TestTaskList_RemovePurgesSelection(t *testing.T) {
	l := newTestList()
	tasks := parse("a", "b")
	l.Add(tasks, true)

	sel := l.Selection()
	sel.Select(tasks...)
	sel.EditPending(tasks[0])

	l.RemoveAll([]*domain.Task{tasks[0]})

	assert.Equal(t, []*domain.Task{tasks[1]}, sel.Selected())
	assert.Empty(t, sel.PendingEdits())
	assert.False(t, sel.IsSelected(tasks[0]))
}

func TestTaskList_Complete(t *testing.T) {
	t.Run("keep priority", func(t *testing.T) {
		l := newTestList()
		tasks := parse("(A) keep me")
		l.Add(tasks, true)

		l.Complete(tasks, true, true)
		assert.Equal(t, "x 2024-05-10 (A) keep me", tasks[0].ToLine())
	})

	t.Run("recurring spawns exactly one successor", func(t *testing.T) {
		for _, atEnd := range []bool{true, false} {
			l := newTestList()
			tasks := parse("first", "water plants due:2024-05-10 rec:1w", "last")
			l.Add(tasks, true)

			successors := l.Complete([]*domain.Task{tasks[1]}, false, atEnd)

			require.Len(t, successors, 1)
			assert.Equal(t, 4, l.Size())
			idx := l.IndexOf(successors[0])
			if atEnd {
				assert.Equal(t, 3, idx)
			} else {
				assert.Equal(t, 0, idx)
			}
			assert.Equal(t, "2024-05-17", successors[0].DueDate())
		}
	})

	t.Run("complete then uncomplete restores the task", func(t *testing.T) {
		l := newTestList()
		tasks := parse("2024-05-01 write report +work")
		l.Add(tasks, true)
		before := tasks[0].ToLine()

		l.Complete(tasks, false, true)
		l.Uncomplete(tasks)

		assert.Equal(t, before, tasks[0].ToLine())
		assert.Equal(t, 1, l.Size())
	})
}

func TestTaskList_Defer(t *testing.T) {
	l := newTestList()
	tasks := parse("a", "b due:2024-05-20")
	l.Add(tasks, true)

	require.NoError(t, l.Defer("+1d", tasks, domain.DateDue))
	assert.Equal(t, []string{"a due:2024-05-11", "b due:2024-05-21"}, l.Lines())

	err := l.Defer("zzz", tasks, domain.DateThreshold)
	assert.ErrorIs(t, err, domain.ErrInvalidDeferSpec)
	assert.Equal(t, []string{"a due:2024-05-11", "b due:2024-05-21"}, l.Lines())
}

func TestTaskList_Update(t *testing.T) {
	t.Run("equal length replaces in place", func(t *testing.T) {
		l := newTestList()
		tasks := parse("a", "b", "c")
		l.Add(tasks, true)

		l.Update([]*domain.Task{tasks[1]}, parse("B"), true)

		assert.Equal(t, []string{"a", "B", "c"}, l.Lines())
		assert.Same(t, tasks[0], l.Tasks()[0])
		assert.Same(t, tasks[2], l.Tasks()[2])
	})

	t.Run("split one task into three", func(t *testing.T) {
		l := newTestList()
		tasks := parse("a", "b", "c")
		l.Add(tasks, true)

		l.Update([]*domain.Task{tasks[1]}, parse("b1", "b2", "b3"), true)

		assert.Equal(t, []string{"a", "b1", "c", "b2", "b3"}, l.Lines())
	})

	t.Run("surplus originals are removed", func(t *testing.T) {
		l := newTestList()
		tasks := parse("a", "b", "c")
		l.Add(tasks, true)

		l.Update(tasks[:2], parse("ab"), false)

		assert.Equal(t, []string{"ab", "c"}, l.Lines())
	})

	t.Run("missing original adds update", func(t *testing.T) {
		l := newTestList()
		tasks := parse("a")
		l.Add(tasks, true)

		l.Update(parse("gone"), parse("new"), false)

		assert.Equal(t, []string{"new", "a"}, l.Lines())
	})

	t.Run("same reference edited in place", func(t *testing.T) {
		l := newTestList()
		tasks := parse("a", "b")
		l.Add(tasks, true)
		l.Selection().Select(tasks[0])

		tasks[0].SetPriority('A')
		l.Update(tasks[:1], tasks[:1], true)

		assert.Equal(t, []string{"(A) a", "b"}, l.Lines())
		assert.True(t, l.Selection().IsSelected(tasks[0]))
	})
}

func TestTaskList_DerivedCaches(t *testing.T) {
	l := newTestList()
	tasks := parse("(B) call @phone +family", "(A) mail @computer +work", "read +family")
	l.Add(tasks, true)

	contexts := l.Contexts()
	assert.Equal(t, []string{"computer", "phone"}, contexts)
	assert.Equal(t, []string{"family", "work"}, l.Projects())
	assert.Equal(t, []domain.Priority{'A', 'B', domain.PriorityNone}, l.Priorities())

	// Repeated reads without a mutation return the same backing array.
	again := l.Contexts()
	assert.Same(t, &contexts[0], &again[0])

	l.Add(parse("shop @store"), true)
	assert.Equal(t, []string{"computer", "phone", "store"}, l.Contexts())

	l.Prioritize(tasks[2:], 'C')
	assert.Equal(t, []domain.Priority{'A', 'B', 'C'}, l.Priorities()[:3])

	l.RemoveAll(tasks[:1])
	assert.Equal(t, []string{"family", "work"}, l.Projects())
	assert.Equal(t, []string{"computer", "store"}, l.Contexts())
}

func TestTaskList_ChangeListener(t *testing.T) {
	l := newTestList()
	var reasons []string
	l.SetChangeListener(func(reason string) { reasons = append(reasons, reason) })

	tasks := parse("a", "b")
	l.Add(tasks, true)
	l.Prioritize(tasks, 'A')
	l.Complete(tasks[:1], false, true)
	l.Uncomplete(tasks[:1])
	_ = l.Defer("1d", tasks, domain.DateDue)
	l.Update(tasks[:1], parse("c"), true)
	l.RemoveAll(tasks[1:])
	l.Replace(parse("x", "y"))

	assert.Equal(t, []string{"add", "prioritize", "complete", "uncomplete", "defer", "update", "remove"}, reasons)
	assert.Equal(t, 2, l.Size())
}

func TestTaskList_GetSortedView(t *testing.T) {
	l := newTestList()
	l.Add(parse("(B) beta +work", "(A) alpha", "x 2024-01-01 done +work", "gamma +work"), true)

	t.Run("nil strategy is file order", func(t *testing.T) {
		view, total := l.GetSortedView(nil, false)
		assert.Equal(t, 4, total)
		assert.Equal(t, l.Lines(), viewLines(view))
	})

	t.Run("reverse file order", func(t *testing.T) {
		sorts, err := query.ParseSorts("-file_order")
		require.NoError(t, err)

		view, total := l.GetSortedView(&query.Query{Sorts: sorts}, false)
		assert.Equal(t, 4, total)
		assert.Equal(t, []string{"gamma +work", "x 2024-01-01 done +work", "(A) alpha", "(B) beta +work"}, viewLines(view))
	})

	t.Run("sort then filter keeps total", func(t *testing.T) {
		sorts, err := query.ParseSorts("priority")
		require.NoError(t, err)

		view, total := l.GetSortedView(&query.Query{
			Sorts:         sorts,
			Tags:          []string{"work"},
			HideCompleted: true,
		}, false)
		assert.Equal(t, 4, total)
		assert.Equal(t, []string{"(B) beta +work", "gamma +work"}, viewLines(view))
	})

	t.Run("stable sort within reversed base", func(t *testing.T) {
		sorts, err := query.ParseSorts("-file_order", "completed")
		require.NoError(t, err)

		view, _ := l.GetSortedView(&query.Query{Sorts: sorts}, false)
		assert.Equal(t, []string{"gamma +work", "(A) alpha", "(B) beta +work", "x 2024-01-01 done +work"}, viewLines(view))
	})

	t.Run("entries carry index and selection", func(t *testing.T) {
		sorts, err := query.ParseSorts("priority")
		require.NoError(t, err)
		tasks := l.Tasks()
		l.Selection().Select(tasks[1])
		defer l.Selection().Clear()

		view, _ := l.GetSortedView(&query.Query{Sorts: sorts, ShowSelected: true, HideCompleted: true, Tags: []string{"nothing"}}, false)
		require.Len(t, view, 1)
		assert.Same(t, tasks[1], view[0].Task)
		assert.Equal(t, 1, view[0].Index)
		assert.True(t, view[0].Selected)
		assert.False(t, tasks[1].Selected(), "live task flag is never written")
	})

	t.Run("snapshot is detached from the list", func(t *testing.T) {
		view, _ := l.GetSortedView(nil, false)
		l.Add(parse("later"), true)
		defer l.RemoveAll(l.Tasks()[4:])

		assert.Len(t, view, 4)
		assert.Equal(t, 5, l.Size())
	})
}

func TestTaskList_Accessors(t *testing.T) {
	l := newTestList()
	tasks := parse("a", "b")
	l.Add(tasks, true)

	got, ok := l.TaskAt(1)
	assert.True(t, ok)
	assert.Same(t, tasks[1], got)

	_, ok = l.TaskAt(2)
	assert.False(t, ok)
	_, ok = l.TaskAt(-1)
	assert.False(t, ok)

	var seen []string
	l.Each(func(i int, task *domain.Task) { seen = append(seen, task.ToLine()) })
	assert.Equal(t, []string{"a", "b"}, seen)
}

// TestTaskList_SizeTracksReferences checks that after random add, remove and
// update sequences the size equals the number of live references.
func TestTaskList_SizeTracksReferences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := newTestList()
	var live []*domain.Task

	for step := 0; step < 500; step++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(live) == 0:
			batch := parse("task", "task")
			l.Add(batch, rng.Intn(2) == 0)
			live = append(live, batch...)
		case op == 1:
			victim := live[rng.Intn(len(live))]
			l.RemoveAll([]*domain.Task{victim})
			live = slices.DeleteFunc(live, func(t *domain.Task) bool { return t == victim })
		default:
			orig := live[rng.Intn(len(live))]
			repl := parse("replacement")
			l.Update([]*domain.Task{orig}, repl, true)
			live = slices.DeleteFunc(live, func(t *domain.Task) bool { return t == orig })
			live = append(live, repl...)
		}
		require.Equal(t, len(live), l.Size(), "step %d", step)
	}

	for _, task := range live {
		assert.GreaterOrEqual(t, l.IndexOf(task), 0)
	}
}

func TestTaskList_Describe(t *testing.T) {
	l := newTestList()
	tasks := parse("a", "b")
	l.Add(tasks, true)
	l.Selection().Select(tasks[1])
	gone := domain.MustParseTask("gone")

	got := l.Describe([]*domain.Task{tasks[1], gone})
	assert.Equal(t, []ViewEntry{
		{Task: tasks[1], Line: "b", Index: 1, Selected: true},
		{Task: gone, Line: "gone", Index: -1},
	}, got)

	l.Complete(tasks[:1], false, true)
	assert.Equal(t, []*domain.Task{tasks[0]}, l.CompletedTasks())
}

func TestTaskList_Revision(t *testing.T) {
	l := newTestList()
	tasks := parse("a", "b")

	rev := l.Revision()
	l.Add(tasks, true)
	assert.Greater(t, l.Revision(), rev)

	mutations := map[string]func(){
		"remove":     func() { l.RemoveAll(tasks[1:]) },
		"complete":   func() { l.Complete(tasks[:1], true, true) },
		"uncomplete": func() { l.Uncomplete(tasks[:1]) },
		"prioritize": func() { l.Prioritize(tasks[:1], 'A') },
		"defer":      func() { _ = l.Defer("1d", tasks[:1], domain.DateDue) },
		"update":     func() { l.Update(tasks[:1], tasks[:1], true) },
		"replace":    func() { l.Replace(tasks[:1]) },
	}
	for name, mutate := range mutations {
		before := l.Revision()
		mutate()
		assert.Greater(t, l.Revision(), before, name)
	}

	t.Run("replace if unchanged", func(t *testing.T) {
		rev := l.Revision()
		require.True(t, l.ReplaceIfUnchanged(rev, parse("remote")))
		assert.Equal(t, []string{"remote"}, l.Lines())

		rev = l.Revision()
		l.Add(parse("local edit"), true)
		assert.False(t, l.ReplaceIfUnchanged(rev, parse("stale remote")))
		assert.Equal(t, []string{"remote", "local edit"}, l.Lines())
	})
}

// Run with -race: views are built while other goroutines mutate the same
// tasks and the selection.
func TestTaskList_GetSortedViewConcurrentMutations(t *testing.T) {
	l := newTestList()
	tasks := parse("(B) one due:2024-05-01", "two", "(A) three due:2024-06-01 +work", "four @home")
	l.Add(tasks, true)

	sorts, err := query.ParseSorts("priority", "-due", "alphabetical")
	require.NoError(t, err)
	q := &query.Query{Sorts: sorts, Text: "o", ShowSelected: true}

	const rounds = 200
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			l.Prioritize(tasks[i%len(tasks):i%len(tasks)+1], domain.Priority('A'+i%3))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			assert.NoError(t, l.Defer("+1d", tasks, domain.DateDue))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			l.Selection().Select(tasks[i%len(tasks)])
			l.Selection().Deselect(tasks[(i+1)%len(tasks)])
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			view, total := l.GetSortedView(q, false)
			assert.Equal(t, len(tasks), total)
			for _, e := range view {
				assert.NotEmpty(t, e.Line)
				assert.GreaterOrEqual(t, e.Index, 0)
			}
			l.Describe(tasks)
		}
	}()
	wg.Wait()

	for _, task := range tasks {
		assert.False(t, task.Selected())
	}
}
