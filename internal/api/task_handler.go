package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/phrazzld/tasklist/internal/api/shared"
	"github.com/phrazzld/tasklist/internal/domain"
	"github.com/phrazzld/tasklist/internal/platform/logger"
	"github.com/phrazzld/tasklist/internal/query"
	"github.com/phrazzld/tasklist/internal/todolist"
)

// SyncService is the part of todolist.Syncer used by the handlers.
type SyncService interface {
	Path() string
	State() todolist.State
	ChangesPending() bool
	Reload(reason string) error
	Archive(tasks []*domain.Task) error
}

// TaskHandlerConfig carries the list preferences applied to requests.
type TaskHandlerConfig struct {
	// Sorts is used when a list request has no sort parameter.
	Sorts         []string
	CaseSensitive bool
	KeepPriority  bool
	AppendAtEnd   bool

	// Today returns the current date; nil means domain.Today.
	Today func() string
}

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	list   *todolist.TaskList
	sync   SyncService
	cfg    TaskHandlerConfig
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(
	list *todolist.TaskList,
	sync SyncService,
	cfg TaskHandlerConfig,
	logger *slog.Logger,
) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	if cfg.Today == nil {
		cfg.Today = domain.Today
	}

	return &TaskHandler{
		list:   list,
		sync:   sync,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "task_handler")),
	}
}

// ListTasks handles GET /tasks requests. Supported query parameters:
// sort (e.g. "priority,-due"), list, tag, q, hide_completed and hide_future.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q, err := h.queryFromRequest(r)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	view, total := h.list.GetSortedView(q, h.cfg.CaseSensitive)
	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{
		Tasks: lo.Map(view, func(e todolist.ViewEntry, _ int) TaskResponse { return toResponse(e) }),
		Total: total,
	})
}

func (h *TaskHandler) queryFromRequest(r *http.Request) (*query.Query, error) {
	sorts := shared.QueryList(r, "sort")
	if len(sorts) == 0 {
		sorts = h.cfg.Sorts
	}
	keys, err := query.ParseSorts(sorts...)
	if err != nil {
		return nil, err
	}

	hideCompleted, err := shared.QueryBool(r, "hide_completed")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	hideFuture, err := shared.QueryBool(r, "hide_future")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	return &query.Query{
		Sorts:         keys,
		Lists:         shared.QueryList(r, "list"),
		Tags:          shared.QueryList(r, "tag"),
		Text:          r.URL.Query().Get("q"),
		HideCompleted: hideCompleted,
		HideFuture:    hideFuture,
		Today:         h.cfg.Today(),
	}, nil
}

// AddTasks handles POST /tasks requests.
func (h *TaskHandler) AddTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req AddTasksRequest
	if !h.decode(w, r, &req) {
		return
	}

	tasks, err := parseLines(req.Lines)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	atEnd := h.cfg.AppendAtEnd
	if req.AtEnd != nil {
		atEnd = *req.AtEnd
	}
	added := h.list.Add(tasks, atEnd)

	log.Debug("tasks added", slog.Int("count", len(added)), slog.Bool("at_end", atEnd))
	shared.RespondWithJSON(w, r, http.StatusCreated, h.listResponse(added))
}

// CompleteTask handles POST /tasks/{index}/complete requests. The response
// holds the completed task followed by any recurrence successor.
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.taskFromPath(w, r)
	if !ok {
		return
	}

	successors := h.list.Complete([]*domain.Task{task}, h.cfg.KeepPriority, h.cfg.AppendAtEnd)
	shared.RespondWithJSON(w, r, http.StatusOK, h.listResponse(append([]*domain.Task{task}, successors...)))
}

// UncompleteTask handles POST /tasks/{index}/uncomplete requests.
func (h *TaskHandler) UncompleteTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.taskFromPath(w, r)
	if !ok {
		return
	}

	h.list.Uncomplete([]*domain.Task{task})
	shared.RespondWithJSON(w, r, http.StatusOK, h.taskResponse(task))
}

// PrioritizeTask handles POST /tasks/{index}/priority requests.
func (h *TaskHandler) PrioritizeTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.taskFromPath(w, r)
	if !ok {
		return
	}

	var req PriorityRequest
	if !h.decode(w, r, &req) {
		return
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.list.Prioritize([]*domain.Task{task}, priority)
	shared.RespondWithJSON(w, r, http.StatusOK, h.taskResponse(task))
}

// DeferTask handles POST /tasks/{index}/defer requests. An unusable spec
// leaves the task unchanged and is answered with 400.
func (h *TaskHandler) DeferTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.taskFromPath(w, r)
	if !ok {
		return
	}

	var req DeferRequest
	if !h.decode(w, r, &req) {
		return
	}
	dateType := domain.DateDue
	if req.Date == "threshold" {
		dateType = domain.DateThreshold
	}

	if err := h.list.Defer(req.Spec, []*domain.Task{task}, dateType); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, h.taskResponse(task))
}

// UpdateTask handles PUT /tasks/{index} requests. Several lines split the
// task: the first replaces it in place, the rest are added.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.taskFromPath(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := parseLines(req.Lines)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.list.Update([]*domain.Task{task}, updated, h.cfg.AppendAtEnd)
	shared.RespondWithJSON(w, r, http.StatusOK, h.listResponse(updated))
}

// DeleteTask handles DELETE /tasks/{index} requests.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.taskFromPath(w, r)
	if !ok {
		return
	}

	h.list.RemoveAll([]*domain.Task{task})
	w.WriteHeader(http.StatusNoContent)
}

// SetSelection handles PUT /selection requests.
func (h *TaskHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !h.decode(w, r, &req) {
		return
	}

	tasks := make([]*domain.Task, 0, len(req.Indexes))
	for _, idx := range req.Indexes {
		t, ok := h.list.TaskAt(idx)
		if !ok {
			err := fmt.Errorf("%w: index %d", ErrTaskNotFound, idx)
			shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
			return
		}
		tasks = append(tasks, t)
	}

	sel := h.list.Selection()
	sel.Clear()
	sel.Select(tasks...)
	shared.RespondWithJSON(w, r, http.StatusOK, SelectionResponse{Count: sel.Count()})
}

// ClearSelection handles DELETE /selection requests.
func (h *TaskHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.list.Selection().Clear()
	w.WriteHeader(http.StatusNoContent)
}

// Archive handles POST /archive requests: all completed tasks move to the
// done file. The append runs on the action queue, so 202 is returned.
func (h *TaskHandler) Archive(w http.ResponseWriter, r *http.Request) {
	done := h.list.CompletedTasks()

	if err := h.sync.Archive(done); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, map[string]int{"archived": len(done)})
}

// Sync handles POST /sync requests by queueing a reload. With unsaved
// changes the reload turns into a save.
func (h *TaskHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.Reload("api"); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, h.status())
}

// Status handles GET /status requests.
func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.status())
}

// Facets handles GET /facets requests.
func (h *TaskHandler) Facets(w http.ResponseWriter, r *http.Request) {
	resp := FacetsResponse{
		Lists: append([]string{}, h.list.Contexts()...),
		Tags:  append([]string{}, h.list.Projects()...),
		Priorities: lo.Map(h.list.Priorities(), func(p domain.Priority, _ int) string {
			return p.String()
		}),
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

func (h *TaskHandler) status() StatusResponse {
	return StatusResponse{
		Path:           h.sync.Path(),
		State:          h.sync.State().String(),
		ChangesPending: h.sync.ChangesPending(),
		Size:           h.list.Size(),
		Selected:       h.list.Selection().Count(),
	}
}

// taskFromPath resolves the {index} URL parameter and writes the error
// response when it does not address a task.
func (h *TaskHandler) taskFromPath(w http.ResponseWriter, r *http.Request) (*domain.Task, bool) {
	raw := chi.URLParam(r, "index")
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 {
		err = fmt.Errorf("%w: %q", ErrInvalidIndex, raw)
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return nil, false
	}

	task, ok := h.list.TaskAt(idx)
	if !ok {
		err = fmt.Errorf("%w: index %d", ErrTaskNotFound, idx)
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return nil, false
	}
	return task, true
}

func (h *TaskHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, shared.ValidationMessage(err), err)
		return false
	}
	return true
}

func (h *TaskHandler) listResponse(tasks []*domain.Task) TaskListResponse {
	return TaskListResponse{
		Tasks: lo.Map(h.list.Describe(tasks), func(e todolist.ViewEntry, _ int) TaskResponse { return toResponse(e) }),
		Total: h.list.Size(),
	}
}

func (h *TaskHandler) taskResponse(t *domain.Task) TaskResponse {
	return toResponse(h.list.Describe([]*domain.Task{t})[0])
}

func toResponse(e todolist.ViewEntry) TaskResponse {
	return TaskResponse{
		Index:    e.Index,
		Line:     e.Line,
		Selected: e.Selected,
	}
}

func parseLines(lines []string) ([]*domain.Task, error) {
	tasks := make([]*domain.Task, 0, len(lines))
	for i, line := range lines {
		t, err := domain.ParseTask(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		tasks = append(tasks, t)
	}
	if len(tasks) == 0 {
		return nil, domain.ErrEmptyTask
	}
	return tasks, nil
}
