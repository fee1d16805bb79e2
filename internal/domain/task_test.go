package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		line       string
		completed  bool
		completion string
		priority   Priority
		created    string
		text       string
	}{
		{
			name: "plain text",
			line: "call mom",
			text: "call mom",
		},
		{
			name:     "priority and creation date",
			line:     "(A) 2024-05-01 call mom @phone +family",
			priority: 'A',
			created:  "2024-05-01",
			text:     "call mom @phone +family",
		},
		{
			name:       "completed with both dates",
			line:       "x 2024-05-02 2024-05-01 call mom",
			completed:  true,
			completion: "2024-05-02",
			created:    "2024-05-01",
			text:       "call mom",
		},
		{
			name:       "completed keeping priority",
			line:       "x 2024-05-02 (B) call mom",
			completed:  true,
			completion: "2024-05-02",
			priority:   'B',
			text:       "call mom",
		},
		{
			name: "word starting with x is not completion",
			line: "xylophone lesson",
			text: "xylophone lesson",
		},
		{
			name: "lowercase priority is text",
			line: "(a) not a priority",
			text: "(a) not a priority",
		},
		{
			name: "carriage return trimmed",
			line: "windows line\r",
			text: "windows line",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			task, err := ParseTask(tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.completed, task.Completed())
			assert.Equal(t, tc.completion, task.CompletionDate())
			assert.Equal(t, tc.priority, task.Priority())
			assert.Equal(t, tc.created, task.CreateDate())
			assert.Equal(t, tc.text, task.Text())
		})
	}
}

func TestParseTask_Empty(t *testing.T) {
	t.Parallel()

	for _, line := range []string{"", "   ", "\r\n"} {
		_, err := ParseTask(line)
		assert.ErrorIs(t, err, ErrEmptyTask)
	}
}

func TestTask_ToLineRoundTrip(t *testing.T) {
	t.Parallel()

	lines := []string{
		"call mom",
		"(A) 2024-05-01 call mom @phone +family due:2024-06-01",
		"x 2024-05-02 2024-05-01 call mom",
		"x 2024-05-02 (C) pay rent rec:+1m",
	}
	for _, line := range lines {
		assert.Equal(t, line, MustParseTask(line).ToLine())
	}
}

func TestTask_ListsAndTags(t *testing.T) {
	t.Parallel()

	task := MustParseTask("buy milk @store @errands +home @store + @ +home")
	assert.Equal(t, []string{"store", "errands"}, task.Lists())
	assert.Equal(t, []string{"home"}, task.Tags())
}

func TestTask_Equal(t *testing.T) {
	t.Parallel()

	a := MustParseTask("(A) same text")
	b := MustParseTask("(A) same text")
	c := MustParseTask("(B) same text")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.NotSame(t, a, b)
}

func TestTask_MarkComplete(t *testing.T) {
	t.Parallel()

	t.Run("non recurring", func(t *testing.T) {
		task := MustParseTask("(A) water plants")
		next := task.MarkComplete("2024-05-10")

		assert.Nil(t, next)
		assert.True(t, task.Completed())
		assert.Equal(t, "2024-05-10", task.CompletionDate())
		assert.Equal(t, "x 2024-05-10 (A) water plants", task.ToLine())
	})

	t.Run("already completed", func(t *testing.T) {
		task := MustParseTask("x 2024-05-01 done")
		assert.Nil(t, task.MarkComplete("2024-05-10"))
		assert.Equal(t, "2024-05-01", task.CompletionDate())
	})

	t.Run("recurring from today", func(t *testing.T) {
		task := MustParseTask("2024-05-01 water plants due:2024-05-03 rec:1w")
		next := task.MarkComplete("2024-05-10")

		require.NotNil(t, next)
		assert.False(t, next.Completed())
		assert.Equal(t, "2024-05-10", next.CreateDate())
		assert.Equal(t, "2024-05-17", next.DueDate())
	})

	t.Run("strict recurring from original date", func(t *testing.T) {
		task := MustParseTask("pay rent due:2024-05-01 t:2024-04-25 rec:+1m")
		next := task.MarkComplete("2024-05-10")

		require.NotNil(t, next)
		assert.Equal(t, "2024-06-01", next.DueDate())
		assert.Equal(t, "2024-05-25", next.ThresholdDate())
		assert.Equal(t, "", next.CreateDate())
	})
}

func TestTask_MarkIncomplete(t *testing.T) {
	t.Parallel()

	task := MustParseTask("(B) write report")
	before := task.ToLine()

	task.MarkComplete("2024-05-10")
	task.MarkIncomplete()

	assert.False(t, task.Completed())
	assert.Equal(t, before, task.ToLine())
}

func TestTask_Defer(t *testing.T) {
	t.Parallel()

	const today = "2024-05-10"

	tests := []struct {
		name     string
		line     string
		spec     string
		dateType DateType
		want     string
	}{
		{"absolute due", "task", "2024-06-01", DateDue, "task due:2024-06-01"},
		{"relative days", "task", "3d", DateDue, "task due:2024-05-13"},
		{"bare number is days", "task", "2", DateThreshold, "task t:2024-05-12"},
		{"relative to existing", "task due:2024-05-20", "+1w", DateDue, "task due:2024-05-27"},
		{"plus without existing uses today", "task", "+1w", DateDue, "task due:2024-05-17"},
		{"replace keeps position", "task due:2024-05-20 @home", "2024-07-01", DateDue, "task due:2024-07-01 @home"},
		{"empty removes", "task t:2024-05-20 @home", "", DateThreshold, "task @home"},
		{"business days skip weekend", "task", "1b", DateDue, "task due:2024-05-13"},
		{"natural language", "task", "tomorrow", DateDue, "task due:2024-05-11"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			task := MustParseTask(tc.line)
			require.NoError(t, task.Defer(tc.spec, today, tc.dateType))
			assert.Equal(t, tc.want, task.ToLine())
		})
	}
}

func TestTask_DeferInvalidLeavesTaskUnchanged(t *testing.T) {
	t.Parallel()

	task := MustParseTask("task due:2024-05-20")
	err := task.DeferDueDate("zzz", "2024-05-10")

	assert.ErrorIs(t, err, ErrInvalidDeferSpec)
	assert.Equal(t, "task due:2024-05-20", task.ToLine())
}

func TestTask_InFuture(t *testing.T) {
	t.Parallel()

	assert.True(t, MustParseTask("later t:2024-06-01").InFuture("2024-05-10"))
	assert.False(t, MustParseTask("now t:2024-05-10").InFuture("2024-05-10"))
	assert.False(t, MustParseTask("no threshold").InFuture("2024-05-10"))
}
