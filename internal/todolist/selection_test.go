package todolist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/tasklist/internal/domain"
)

func TestSelection(t *testing.T) {
	tasks := parse("a", "b", "c")
	s := NewSelection()

	var counts []int
	s.SetChangeListener(func(count int) { counts = append(counts, count) })

	s.Select(tasks[2], tasks[0], tasks[2])
	assert.Equal(t, []*domain.Task{tasks[2], tasks[0]}, s.Selected())
	assert.Equal(t, 2, s.Count())
	assert.True(t, s.IsSelected(tasks[0]))
	assert.False(t, s.IsSelected(tasks[1]))

	s.Deselect(tasks[0], tasks[1])
	assert.False(t, s.IsSelected(tasks[0]))
	assert.True(t, s.IsSelected(tasks[2]))

	s.Clear()
	assert.Zero(t, s.Count())
	assert.False(t, s.IsSelected(tasks[2]))

	// No-op changes do not notify.
	s.Clear()
	s.Deselect(tasks[1])

	assert.Equal(t, []int{2, 1, 0}, counts)
}

func TestSelection_PendingEdits(t *testing.T) {
	tasks := parse("a", "b")
	s := NewSelection()

	s.EditPending(tasks[0], tasks[0], nil, tasks[1])
	s.Select(tasks[0])
	s.Clear()
	assert.Equal(t, tasks, s.PendingEdits())

	s.Forget(tasks[1])
	assert.Equal(t, tasks[:1], s.PendingEdits())

	s.ClearPendingEdits()
	assert.Empty(t, s.PendingEdits())
}

func TestSelection_ForgetNotifiesOnlyOnChange(t *testing.T) {
	tasks := parse("a", "b")
	s := NewSelection()
	s.Select(tasks[0])

	notified := 0
	s.SetChangeListener(func(int) { notified++ })

	s.Forget()
	s.Forget(tasks[1])
	assert.Zero(t, notified)

	s.Forget(tasks[0])
	assert.Equal(t, 1, notified)
	assert.False(t, s.IsSelected(tasks[0]))
}
