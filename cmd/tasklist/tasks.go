package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/phrazzld/tasklist/internal/domain"
	"github.com/phrazzld/tasklist/internal/query"
	"github.com/phrazzld/tasklist/internal/todolist"
)

// errBadTaskNumber is returned for arguments that do not address a task.
var errBadTaskNumber = errors.New("no task with that number")

type listOptions struct {
	sorts         []string
	lists         []string
	tags          []string
	hideCompleted bool
	hideFuture    bool
}

func newListCmd(root *rootOptions) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:     "list [text]",
		Aliases: []string{"ls"},
		GroupID: "tasks",
		Short:   "List tasks",
		Long: `List tasks with their line numbers.

Sort keys: file_order, priority, completed, due, threshold, created,
alphabetical, list, tag. Prefix a key with "-" to reverse it. A list or
tag filter of "-" matches tasks without any list or tag.`,
		Example: `  tasklist list --sort priority,due --tag work
  tasklist list --hide-completed groceries`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withSession(cmd, func(_ context.Context, app *application) error {
				sorts := opts.sorts
				if len(sorts) == 0 {
					sorts = app.config.Todo.Sorts
				}
				keys, err := query.ParseSorts(sorts...)
				if err != nil {
					return err
				}
				q := &query.Query{
					Sorts:         keys,
					Lists:         opts.lists,
					Tags:          opts.tags,
					Text:          strings.Join(args, " "),
					HideCompleted: opts.hideCompleted,
					HideFuture:    opts.hideFuture,
					Today:         domain.Today(),
				}

				view, total := app.list.GetSortedView(q, app.config.Todo.CaseSensitive)
				out := cmd.OutOrStdout()
				printEntries(out, view)
				if len(view) != total {
					fmt.Fprintf(out, "-- %d of %d tasks shown\n", len(view), total)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&opts.sorts, "sort", "s", nil, "sort keys (default: todo.sorts)")
	cmd.Flags().StringSliceVarP(&opts.lists, "list", "l", nil, "only tasks in these @lists")
	cmd.Flags().StringSliceVarP(&opts.tags, "tag", "t", nil, "only tasks with these +tags")
	cmd.Flags().BoolVar(&opts.hideCompleted, "hide-completed", false, "hide completed tasks")
	cmd.Flags().BoolVar(&opts.hideFuture, "hide-future", false, "hide tasks whose threshold date is in the future")
	return cmd
}

func newAddCmd(root *rootOptions) *cobra.Command {
	var front, end bool

	cmd := &cobra.Command{
		Use:     "add <line>...",
		GroupID: "tasks",
		Short:   "Add one task per argument",
		Example: `  tasklist add "(A) call mom @phone due:2024-05-10"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := parseTaskLines(args)
			if err != nil {
				return err
			}
			return root.withSession(cmd, func(_ context.Context, app *application) error {
				atEnd := app.config.Todo.AppendAtEnd
				if front {
					atEnd = false
				}
				if end {
					atEnd = true
				}
				added := app.list.Add(tasks, atEnd)
				printTasks(cmd.OutOrStdout(), app.list, added)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&front, "front", false, "insert at the top of the file")
	cmd.Flags().BoolVar(&end, "end", false, "append at the end of the file")
	cmd.MarkFlagsMutuallyExclusive("front", "end")
	return cmd
}

func newDoneCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "done <number>...",
		Aliases: []string{"do"},
		GroupID: "tasks",
		Short:   "Complete tasks; recurring tasks spawn their next instance",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withSession(cmd, func(_ context.Context, app *application) error {
				tasks, err := resolveTasks(app.list, args)
				if err != nil {
					return err
				}
				next := app.list.Complete(tasks, app.config.Todo.KeepPriority, app.config.Todo.AppendAtEnd)
				printTasks(cmd.OutOrStdout(), app.list, append(tasks, next...))
				return nil
			})
		},
	}
}

func newUndoCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "undo <number>...",
		GroupID: "tasks",
		Short:   "Reopen completed tasks",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withSession(cmd, func(_ context.Context, app *application) error {
				tasks, err := resolveTasks(app.list, args)
				if err != nil {
					return err
				}
				app.list.Uncomplete(tasks)
				printTasks(cmd.OutOrStdout(), app.list, tasks)
				return nil
			})
		},
	}
}

func newPriCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "pri <priority> <number>...",
		GroupID: "tasks",
		Short:   `Set the priority of tasks; "-" removes it`,
		Example: `  tasklist pri A 3 4
  tasklist pri - 3`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, err := domain.ParsePriority(args[0])
			if err != nil {
				return err
			}
			return root.withSession(cmd, func(_ context.Context, app *application) error {
				tasks, err := resolveTasks(app.list, args[1:])
				if err != nil {
					return err
				}
				app.list.Prioritize(tasks, priority)
				printTasks(cmd.OutOrStdout(), app.list, tasks)
				return nil
			})
		},
	}
}

func newDeferCmd(root *rootOptions) *cobra.Command {
	var threshold bool

	cmd := &cobra.Command{
		Use:     "defer <spec> <number>...",
		GroupID: "tasks",
		Short:   "Move the due (or threshold) date of tasks",
		Long: `Move the due date, or with --threshold the threshold date, of tasks.

The spec is a date (2024-05-01), an interval from today (3d, 2w, 1m, 1y),
an interval from the current date (+3d), natural language ("next monday")
or "" to remove the date. Tasks the spec cannot be applied to are left
unchanged.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dateType := domain.DateDue
			if threshold {
				dateType = domain.DateThreshold
			}
			return root.withSession(cmd, func(_ context.Context, app *application) error {
				tasks, err := resolveTasks(app.list, args[1:])
				if err != nil {
					return err
				}
				deferErr := app.list.Defer(args[0], tasks, dateType)
				printTasks(cmd.OutOrStdout(), app.list, tasks)
				return deferErr
			})
		},
	}

	cmd.Flags().BoolVar(&threshold, "threshold", false, "move the threshold date instead of the due date")
	return cmd
}

func newRmCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <number>...",
		Aliases: []string{"del"},
		GroupID: "tasks",
		Short:   "Delete tasks",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withSession(cmd, func(_ context.Context, app *application) error {
				tasks, err := resolveTasks(app.list, args)
				if err != nil {
					return err
				}
				removed := app.list.Describe(tasks)
				app.list.RemoveAll(tasks)
				for _, e := range removed {
					fmt.Fprintf(cmd.OutOrStdout(), "removed: %s\n", e.Line)
				}
				return nil
			})
		},
	}
}

func newEditCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "edit <number> <line>...",
		GroupID: "tasks",
		Short:   "Replace a task; several lines split it into several tasks",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			updated, err := parseTaskLines(args[1:])
			if err != nil {
				return err
			}
			return root.withSession(cmd, func(_ context.Context, app *application) error {
				tasks, err := resolveTasks(app.list, args[:1])
				if err != nil {
					return err
				}
				app.list.Update(tasks, updated, app.config.Todo.AppendAtEnd)
				printTasks(cmd.OutOrStdout(), app.list, updated)
				return nil
			})
		},
	}
}

func newArchiveCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "archive",
		GroupID: "tasks",
		Short:   "Move completed tasks to the done file",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withSession(cmd, func(ctx context.Context, app *application) error {
				done := app.list.CompletedTasks()
				if err := app.syncer.Archive(done); err != nil {
					return err
				}
				if err := app.queue.Drain(ctx); err != nil {
					return err
				}
				if remaining := lo.Intersect(app.list.Tasks(), done); len(remaining) > 0 {
					return fmt.Errorf("archiving failed, %d tasks kept", len(remaining))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "archived %d tasks to %s\n", len(done), app.config.Todo.DonePath)
				return nil
			})
		},
	}
}

// parseTaskLines parses command line arguments into tasks.
func parseTaskLines(lines []string) ([]*domain.Task, error) {
	tasks := make([]*domain.Task, 0, len(lines))
	for _, line := range lines {
		t, err := domain.ParseTask(line)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", line, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// resolveTasks maps 1-based line numbers to tasks. Duplicates are dropped.
func resolveTasks(list *todolist.TaskList, args []string) ([]*domain.Task, error) {
	tasks := make([]*domain.Task, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errBadTaskNumber, arg)
		}
		t, ok := list.TaskAt(n - 1)
		if !ok {
			return nil, fmt.Errorf("%w: %d", errBadTaskNumber, n)
		}
		tasks = append(tasks, t)
	}
	return lo.Uniq(tasks), nil
}

func printTasks(w io.Writer, list *todolist.TaskList, tasks []*domain.Task) {
	printEntries(w, list.Describe(tasks))
}

// printEntries prints entries with their 1-based line numbers.
func printEntries(w io.Writer, entries []todolist.ViewEntry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%3d %s\n", e.Index+1, e.Line)
	}
}
